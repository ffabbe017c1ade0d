// Package outbox публикует события transactional outbox во внешний брокер.
package outbox

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultBatchSize      = 50
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 200 * time.Millisecond
)

// FailureSink принимает события, которые не удалось опубликовать за
// отведённое число попыток.
type FailureSink interface {
	PublishFailure(event domain.OutboxMessage, cause error, attempts int) error
}

// Worker периодически выгребает pending-события из outbox и публикует их.
// Событие публикуется с несколькими попытками; исчерпавшее попытки событие
// помечается failed и уходит в FailureSink, чтобы не блокировать очередь.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	logger    *log.Entry

	dlq            FailureSink
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт логгер воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher задаёт приёмник безнадёжных событий.
func WithDLQPublisher(sink FailureSink) Option {
	return func(w *Worker) { w.dlq = sink }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithBatchSize задаёт размер порции событий за один проход.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт базовую задержку между попытками; каждая
// следующая попытка ждёт вдвое дольше предыдущей.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay > 0 {
			w.retryBaseDelay = delay
		}
	}
}

// NewWorker создаёт воркер публикации outbox.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-worker"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run блокируется до отмены ctx, публикуя события каждый pollInterval.
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithFields(log.Fields{
		"poll_interval": w.pollInterval,
		"batch_size":    w.batchSize,
	}).Info("outbox worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.logger.WithError(err).Error("outbox pass failed")
			}
		}
	}
}

// ProcessOnce публикует одну порцию pending-событий и возвращает число
// успешно отправленных.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if w.deliver(ctx, msg) {
			sent++
		}
	}
	return sent, nil
}

// deliver публикует событие с повторами; возвращает true при успехе.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) bool {
	fields := log.Fields{"event_id": msg.ID, "event_type": msg.EventType}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
				w.logger.WithError(err).WithFields(fields).Error("failed to mark event sent")
			}
			return true
		}
		if attempt < w.maxAttempts && !w.sleep(ctx, attempt) {
			return false
		}
	}

	w.logger.WithError(lastErr).WithFields(fields).
		WithField("attempts", w.maxAttempts).Error("event publication exhausted retries")
	if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
		w.logger.WithError(err).WithFields(fields).Error("failed to mark event failed")
	}
	if w.dlq != nil {
		if err := w.dlq.PublishFailure(msg, lastErr, w.maxAttempts); err != nil {
			w.logger.WithError(err).WithFields(fields).Error("failed to publish event to DLQ")
		}
	}
	return false
}

// sleep ждёт экспоненциальную задержку; false — контекст отменён.
func (w *Worker) sleep(ctx context.Context, attempt int) bool {
	delay := w.retryBaseDelay << (attempt - 1)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
