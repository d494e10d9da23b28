package domain

import "time"

// Mailer описывает отправку писем клиенту. Ошибки отправки логируются
// и никогда не влияют на результат оформления заказа.
type Mailer interface {
	// SendOrderConfirmation отправляет письмо-подтверждение заказа.
	// products содержит карточки товаров из заказа для отображения в письме.
	SendOrderConfirmation(email string, order Order, products map[string]Product) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, expiresAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// CheckoutStep задаёт константы шагов оформления заказа для метрик/логов.
type CheckoutStep string

const (
	CheckoutStepValidate CheckoutStep = "validate"
	CheckoutStepReserve  CheckoutStep = "reserve"
	CheckoutStepPersist  CheckoutStep = "persist"
	CheckoutStepRelease  CheckoutStep = "release"
	CheckoutStepNotify   CheckoutStep = "notify"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
