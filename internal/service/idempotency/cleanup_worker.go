// Package idempotency содержит фоновую очистку истёкших idempotency-ключей.
package idempotency

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultCleanupInterval  = time.Hour
	defaultCleanupBatchSize = 500
)

// CleanupWorker периодически удаляет idempotency-записи с истёкшим TTL.
// Удаление идёт порциями, пока в хранилище остаются истёкшие записи, чтобы
// один проход не захватывал таблицу надолго.
type CleanupWorker struct {
	repo      domain.IdempotencyRepository
	logger    *log.Entry
	interval  time.Duration
	batchSize int
}

// Option настраивает CleanupWorker.
type Option func(*CleanupWorker)

// WithLogger задаёт логгер воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval задаёт период между проходами очистки.
func WithInterval(interval time.Duration) Option {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize задаёт размер порции удаления.
func WithBatchSize(size int) Option {
	return func(w *CleanupWorker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// NewCleanupWorker создаёт воркер очистки.
func NewCleanupWorker(repo domain.IdempotencyRepository, opts ...Option) *CleanupWorker {
	w := &CleanupWorker{
		repo:      repo,
		logger:    log.WithField("component", "idempotency-cleanup"),
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run блокируется до отмены ctx. Первый проход выполняется сразу, чтобы
// после рестарта не ждать целый интервал.
func (w *CleanupWorker) Run(ctx context.Context) {
	w.logger.WithField("interval", w.interval).Info("idempotency cleanup started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("idempotency cleanup stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep удаляет истёкшие записи порциями до опустошения.
func (w *CleanupWorker) sweep(ctx context.Context) {
	total := 0
	for {
		if ctx.Err() != nil {
			return
		}
		deleted, err := w.repo.DeleteExpired(ctx, time.Now().UTC(), w.batchSize)
		if err != nil {
			w.logger.WithError(err).Error("failed to delete expired idempotency keys")
			return
		}
		total += deleted
		if deleted < w.batchSize {
			break
		}
	}
	if total > 0 {
		w.logger.WithField("deleted", total).Info("expired idempotency keys removed")
	}
}
