package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

func orderEvent(id, orderID, eventType, payload string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(payload),
	}
}

func TestWorker_ProcessOnce_PublishesAndMarksSent(t *testing.T) {
	t.Parallel()

	repo := &recordingOutbox{
		pending: []domain.OutboxMessage{
			orderEvent("out-1", "order-1", "order.created", `{"status":"pending"}`),
			orderEvent("out-2", "order-1", "order.status_changed", `{"status":"confirmed"}`),
		},
	}
	broker := &flakyBroker{}

	worker := NewWorker(repo, broker, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := broker.calls(); got != 2 {
		t.Fatalf("expected 2 publish calls, got %d", got)
	}
	if want := []string{"out-1", "out-2"}; !equalIDs(repo.sentIDs, want) {
		t.Fatalf("sent marks out of order: got %v want %v", repo.sentIDs, want)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", repo.failedIDs)
	}
	if want := []string{"out-1", "out-2"}; !equalIDs(broker.publishedIDs(), want) {
		t.Fatalf("events published out of order: got %v want %v", broker.publishedIDs(), want)
	}
}

func TestWorker_ProcessOnce_DeadLettersAfterRetries(t *testing.T) {
	t.Parallel()

	repo := &recordingOutbox{
		pending: []domain.OutboxMessage{
			orderEvent("out-3", "order-7", "order.cancelled", `{"status":"cancelled","stock_restored":true}`),
		},
	}
	broker := &flakyBroker{err: errors.New("broker unavailable")}
	dlq := &flakyBroker{}

	worker := NewWorker(
		repo,
		broker,
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)
	worker.ProcessOnce(context.Background())

	if got := broker.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if len(repo.sentIDs) != 0 {
		t.Fatalf("expected no sent marks, got %v", repo.sentIDs)
	}
	if want := []string{"out-3"}; !equalIDs(repo.failedIDs, want) {
		t.Fatalf("expected failed mark for out-3, got %v", repo.failedIDs)
	}
	if got := dlq.calls(); got != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", got)
	}
}

func TestWorker_ProcessOnce_RecoversAfterTransientError(t *testing.T) {
	t.Parallel()

	repo := &recordingOutbox{
		pending: []domain.OutboxMessage{
			orderEvent("out-4", "order-9", "order.created", `{"status":"pending"}`),
		},
	}
	broker := &flakyBroker{
		sequenceErrors: []error{errors.New("timeout"), nil},
	}

	worker := NewWorker(repo, broker, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := broker.calls(); got != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", got)
	}
	if want := []string{"out-4"}; !equalIDs(repo.sentIDs, want) {
		t.Fatalf("expected sent mark for out-4, got %v", repo.sentIDs)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", repo.failedIDs)
	}
}

func TestWorker_ProcessOnce_FailedEventDoesNotBlockBatch(t *testing.T) {
	t.Parallel()

	repo := &recordingOutbox{
		pending: []domain.OutboxMessage{
			orderEvent("out-5", "order-11", "order.created", `{"status":"pending"}`),
			orderEvent("out-6", "order-12", "order.created", `{"status":"pending"}`),
		},
	}
	// Первое событие не публикуется никогда, второе сразу.
	broker := &flakyBroker{failIDs: map[string]bool{"out-5": true}}

	worker := NewWorker(repo, broker, WithRetryBaseDelay(0), WithMaxAttempts(2))
	worker.ProcessOnce(context.Background())

	if want := []string{"out-5"}; !equalIDs(repo.failedIDs, want) {
		t.Fatalf("expected failed mark for out-5, got %v", repo.failedIDs)
	}
	if want := []string{"out-6"}; !equalIDs(repo.sentIDs, want) {
		t.Fatalf("expected sent mark for out-6, got %v", repo.sentIDs)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &recordingOutbox{}
	broker := &flakyBroker{}

	worker := NewWorker(
		repo,
		broker,
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// recordingOutbox отдаёт фиксированную pending-пачку и записывает отметки.
type recordingOutbox struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (r *recordingOutbox) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (r *recordingOutbox) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(r.pending) {
		return append([]domain.OutboxMessage(nil), r.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), r.pending[:limit]...), nil
}

func (r *recordingOutbox) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(r.pending)}
	if len(r.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (r *recordingOutbox) MarkSent(id string) error {
	r.sentIDs = append(r.sentIDs, id)
	return nil
}

func (r *recordingOutbox) MarkFailed(id string) error {
	r.failedIDs = append(r.failedIDs, id)
	return nil
}

// flakyBroker эмулирует брокер: постоянная ошибка, последовательность ошибок
// или отказ по конкретным ID.
type flakyBroker struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	failIDs        map[string]bool
	callCount      int
	published      []string
}

func (b *flakyBroker) Publish(msg domain.OutboxMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.callCount++

	if b.failIDs[msg.ID] {
		return errors.New("rejected by broker")
	}
	if len(b.sequenceErrors) > 0 {
		err := b.sequenceErrors[0]
		b.sequenceErrors = b.sequenceErrors[1:]
		if err != nil {
			return err
		}
	} else if b.err != nil {
		return b.err
	}

	b.published = append(b.published, msg.ID)
	return nil
}

func (b *flakyBroker) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCount
}

func (b *flakyBroker) publishedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

var (
	_ domain.OutboxRepository = (*recordingOutbox)(nil)
	_ domain.OutboxPublisher  = (*flakyBroker)(nil)
)
