package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Service оформляет заказы. Побочные записи (событие outbox, timeline)
// фиксирует хранилище той же транзакцией, что и заказ; сервис проверяет
// запрос, ведёт метрики и отдаёт построчный отчёт резервирования.
type Service struct {
	repo     domain.OrderRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService конструирует сервис с зависимостями.
func NewService(
	repo domain.OrderRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		repo:     repo,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
	}
}

// NewServiceWithoutMetrics конструирует сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	repo domain.OrderRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	svc := NewService(repo, timeline, logger)
	svc.metrics = nil
	return svc
}

// Create проверяет запрос и создаёт заказ. Возвращает сохранённый заказ и
// построчный отчёт резервирования, включая пропущенные позиции.
func (s *Service) Create(ctx context.Context, userID string, customer domain.CustomerInfo, lines []domain.OrderLineRequest) (domain.Order, []domain.ReservedLine, error) {
	if userID == "" {
		return domain.Order{}, nil, domain.ErrUserIDRequired
	}
	if len(lines) == 0 {
		return domain.Order{}, nil, domain.ErrLinesRequired
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return domain.Order{}, nil, fmt.Errorf("%w: product instance %d", domain.ErrLineQtyInvalid, line.ProductInstanceID)
		}
	}

	start := time.Now()
	order, reserved, err := s.repo.CreateOrder(ctx, userID, customer, lines)
	if s.metrics != nil {
		s.metrics.RecordCreateDuration(time.Since(start))
		for _, line := range reserved {
			s.metrics.RecordLineFulfillment(string(line.Fulfillment))
		}
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCreateFailure(failureReason(err))
		}
		return domain.Order{}, reserved, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordOutboxEvent()
		s.metrics.RecordTimelineEvent()
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"lines":    len(order.Records),
	}).Info("order created")

	return order, reserved, nil
}

// Update меняет статус и заметки заказа; позиции и склад не затрагиваются.
// Пустой статус сохраняет текущий, поэтому правка одних заметок не сбрасывает
// жизненный цикл заказа.
func (s *Service) Update(ctx context.Context, orderID int64, status, notes string) (domain.Order, error) {
	order, err := s.repo.UpdateOrder(ctx, orderID, status, notes)
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderUpdated()
		s.metrics.RecordOutboxEvent()
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order updated")

	return order, nil
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List возвращает заказы пользователя (или все при пустом userID), новые
// первыми. limit <= 0 — без ограничения.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, userID, limit)
}

// Timeline возвращает события жизненного цикла заказа.
func (s *Service) Timeline(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(ctx, orderID)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return "empty_order"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "transient"
	default:
		return "internal"
	}
}
