package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type fakeIdempotencyRepo struct {
	mu        sync.Mutex
	batches   []int
	remaining int
	deleteErr error
}

func (r *fakeIdempotencyRepo) CreateProcessing(context.Context, string, string, time.Time) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, nil
}

func (r *fakeIdempotencyRepo) Get(context.Context, string) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
}

func (r *fakeIdempotencyRepo) MarkDone(context.Context, string, []byte, int) error   { return nil }
func (r *fakeIdempotencyRepo) MarkFailed(context.Context, string, []byte, int) error { return nil }

func (r *fakeIdempotencyRepo) DeleteExpired(_ context.Context, _ time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	deleted := r.remaining
	if deleted > limit {
		deleted = limit
	}
	r.remaining -= deleted
	r.batches = append(r.batches, deleted)
	return deleted, nil
}

func TestCleanupWorkerSweepDrainsInBatches(t *testing.T) {
	repo := &fakeIdempotencyRepo{remaining: 120}
	worker := NewCleanupWorker(repo, WithBatchSize(50))

	worker.sweep(context.Background())

	if repo.remaining != 0 {
		t.Fatalf("remaining = %d", repo.remaining)
	}
	// 50 + 50 + 20: последняя неполная порция завершает проход.
	if len(repo.batches) != 3 || repo.batches[2] != 20 {
		t.Fatalf("batches = %v", repo.batches)
	}
}

func TestCleanupWorkerSweepStopsOnError(t *testing.T) {
	repo := &fakeIdempotencyRepo{remaining: 100, deleteErr: errors.New("db down")}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	worker.sweep(context.Background())

	if len(repo.batches) != 0 {
		t.Fatalf("no batches expected on error, got %v", repo.batches)
	}
}

func TestCleanupWorkerRunSweepsImmediately(t *testing.T) {
	repo := &fakeIdempotencyRepo{remaining: 5}
	worker := NewCleanupWorker(repo, WithInterval(time.Hour), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	// Первый проход не ждёт интервала.
	deadline := time.After(time.Second)
	for {
		repo.mu.Lock()
		swept := len(repo.batches) > 0
		repo.mu.Unlock()
		if swept {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first sweep did not happen")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestCleanupWorkerOptionDefaults(t *testing.T) {
	worker := NewCleanupWorker(&fakeIdempotencyRepo{}, WithInterval(0), WithBatchSize(-5))
	if worker.interval != defaultCleanupInterval || worker.batchSize != defaultCleanupBatchSize {
		t.Fatalf("invalid values must keep defaults: %+v", worker)
	}
}
