package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

var _ domain.IdempotencyRepository = (*expiredKeyStore)(nil)

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &expiredKeyStore{
		deleteResults: []int{3, 3, 1},
	}

	worker := NewCleanupWorker(repo, WithBatchSize(3))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}

	if deleted != 7 {
		t.Fatalf("unexpected deleted total: got=%d want=7", deleted)
	}

	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestCleanupWorker_DeleteExpired_StopsOnShortBatch(t *testing.T) {
	t.Parallel()

	repo := &expiredKeyStore{
		deleteResults: []int{1, 100},
	}

	worker := NewCleanupWorker(repo, WithBatchSize(50))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}

	if deleted != 1 {
		t.Fatalf("short batch must stop the loop: got=%d want=1", deleted)
	}
	if calls := repo.calls(); calls != 1 {
		t.Fatalf("unexpected delete calls: got=%d want=1", calls)
	}
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	repo := &expiredKeyStore{
		deleteErrors: []error{errors.New("boom")},
	}

	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected DeleteExpired error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &expiredKeyStore{
		deleteResults: []int{0, 0, 0},
	}

	worker := NewCleanupWorker(
		repo,
		WithInterval(5*time.Millisecond),
		WithBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := repo.calls(); calls == 0 {
		t.Fatal("expected cleanup to be called at least once")
	}
}

type expiredKeyStore struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *expiredKeyStore) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *expiredKeyStore) Get(string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *expiredKeyStore) MarkDone(string, []byte, int) error {
	panic("not implemented")
}

func (s *expiredKeyStore) MarkFailed(string, []byte, int) error {
	panic("not implemented")
}

func (s *expiredKeyStore) DeleteExpired(_ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *expiredKeyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
