package notification

import (
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

// LogMailer пишет подтверждения в лог вместо реальной отправки.
// Используется по умолчанию, пока не настроен внешний почтовый сервис:
// доставка писем — обязанность внешнего коллаборатора, а не этого сервиса.
type LogMailer struct {
	logger *log.Entry
}

// NewLogMailer создаёт mailer, логирующий отправку.
func NewLogMailer(logger *log.Entry) *LogMailer {
	if logger == nil {
		logger = log.WithField("component", "mailer")
	}
	return &LogMailer{logger: logger}
}

// SendOrderConfirmation логирует факт отправки подтверждения.
func (m *LogMailer) SendOrderConfirmation(email string, order domain.Order, products map[string]domain.Product) error {
	m.logger.WithFields(log.Fields{
		"email":        email,
		"order_id":     order.ID,
		"order_number": order.Number,
		"amount_minor": order.AmountMinor,
		"products":     len(products),
	}).Info("order confirmation dispatched")
	return nil
}

var _ domain.Mailer = (*LogMailer)(nil)
