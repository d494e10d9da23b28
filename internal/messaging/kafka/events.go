package kafka

import (
	"encoding/json"
	"time"
)

// EventType — тип события жизненного цикла заказа в topic.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// Topic-ы сервиса.
const (
	TopicOrderEvents     = "nemez.order.events"
	TopicDeadLetterQueue = "nemez.dlq"
)

// HeaderRetryCount хранит число попыток обработки сообщения.
const HeaderRetryCount = "x-retry-count"

// EventEnvelope описывает обёртку, в которой outbox-события уходят в topic.
// Consumer-ы (например, сервис уведомлений) разбирают сообщения по ней.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
