package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/messaging/kafka"
)

// notifier — выделенный consumer событий заказа: слушает topic заказов
// и диспатчит уведомления клиентам вне основного процесса сервиса.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	logger := log.WithField("component", "notifier")

	brokers := strings.TrimSpace(os.Getenv("NEMEZ_KAFKA_BROKERS"))
	if brokers == "" {
		logger.Fatal("NEMEZ_KAFKA_BROKERS is required")
	}
	groupID := os.Getenv("NEMEZ_NOTIFIER_GROUP")
	if groupID == "" {
		groupID = "nemez-notifier"
	}

	brokerList := strings.Split(brokers, ",")

	dlqProducer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Fatal("failed to create dlq producer")
	}
	defer func() { _ = dlqProducer.Close() }()

	consumer, err := kafka.NewConsumer(
		brokerList,
		groupID,
		[]string{kafka.TopicOrderEvents},
		handleOrderEvent(logger),
		dlqProducer,
		3,
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to create kafka consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start kafka consumer")
	}

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}
	logger.Info("notifier остановлен")
}

// handleOrderEvent разбирает envelope и пишет уведомление в лог.
// Здесь же в production подключается SMTP/пуш-провайдер.
func handleOrderEvent(logger *log.Entry) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		envelope, err := kafka.ParseEnvelope(message)
		if err != nil {
			return err
		}

		entry := logger.WithFields(log.Fields{
			"event_type": envelope.EventType,
			"order_id":   envelope.AggregateID,
		})

		switch envelope.EventType {
		case string(kafka.EventTypeOrderCreated):
			entry.Info("заказ оформлен, отправляем подтверждение")
		case string(kafka.EventTypeOrderCancelled):
			entry.Info("заказ отменён, уведомляем клиента")
		case string(kafka.EventTypeOrderStatusChanged):
			entry.Info("статус заказа изменён, уведомляем клиента")
		default:
			entry.Debug("событие без уведомления, пропускаем")
		}
		return nil
	}
}
