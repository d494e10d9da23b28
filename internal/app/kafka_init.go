package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/messaging/kafka"
)

// initKafkaProducer поднимает Kafka producer по значению NEMEZ_KAFKA_BROKERS.
// Kafka опционален, поэтому отказ брокера не роняет сервис: возвращается nil,
// outbox-воркер не стартует, а события остаются в таблице outbox.
func initKafkaProducer(brokers string, logger *log.Entry) *kafka.Producer {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer
}

// splitBrokers разбирает список брокеров из env, отбрасывая пустые элементы.
func splitBrokers(brokers string) []string {
	var out []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			out = append(out, broker)
		}
	}
	return out
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
