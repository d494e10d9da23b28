package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/service/notification"
	"github.com/yassinkaabi/nemez-backend/internal/storage/memory"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Products    domain.ProductRepository
	Orders      domain.OrderRepository
	OutboxRepo  domain.OutboxRepository
	IdemRepo    domain.IdempotencyRepository
	Mailer      domain.Mailer
	Logger      *log.Entry
	// StorePing проверяет доступность внешнего хранилища; nil для in-memory.
	StorePing   func(ctx context.Context) error
	closeStores func() error
}

// NewDependencies создаёт in-memory зависимости приложения.
// NOTE: в production окружении mailer заменяется на реальный SMTP-клиент.
func NewDependencies(logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	return &Dependencies{
		Products:   memory.NewProductRepository(),
		Orders:     memory.NewOrderRepository(),
		OutboxRepo: memory.NewOutboxRepository(),
		IdemRepo:   memory.NewIdempotencyRepository(),
		Mailer:     notification.NewLogMailer(logger.WithField("component", "mailer")),
		Logger:     logger,
	}
}

// Close освобождает ресурсы хранилища, если они были открыты.
func (d *Dependencies) Close() error {
	if d == nil || d.closeStores == nil {
		return nil
	}
	return d.closeStores()
}
