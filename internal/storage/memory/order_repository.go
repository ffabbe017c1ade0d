package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация заказов поверх общего Store.
// Резервирование остатков, событие outbox и запись timeline выполняются под
// тем же мьютексом, что и каталог, поэтому конкурентные заказы видят
// согласованный склад, а событие не может потеряться после успешного создания.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository создаёт in-memory реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

func (r *orderRepositoryInMemory) CreateOrder(_ context.Context, userID string, customer domain.CustomerInfo, lines []domain.OrderLineRequest) (domain.Order, []domain.ReservedLine, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	variants := make(map[int64]*domain.VariantState, len(lines))
	for _, line := range lines {
		if _, ok := variants[line.ProductInstanceID]; ok {
			continue
		}
		inst, ok := s.instances[line.ProductInstanceID]
		if !ok {
			continue
		}
		name := ""
		if product, ok := s.products[inst.ProductID]; ok {
			name = product.Name
		}
		variants[inst.ID] = &domain.VariantState{
			ID:          inst.ID,
			ProductName: name,
			PriceMinor:  inst.PriceMinor,
			Stock:       inst.StockQuantity,
		}
	}

	reserved := domain.ReserveLines(lines, variants)
	records := domain.AcceptedRecords(reserved)
	if len(records) == 0 {
		return domain.Order{}, reserved, domain.ErrEmptyOrder
	}

	order := domain.Order{
		ID:        s.nextOrderID + 1,
		UserID:    userID,
		Customer:  customer,
		OrderDate: time.Now().UTC(),
		Status:    domain.OrderStatusCreated,
		Records:   records,
	}

	// Событие собираем до мутации состояния: заказ без события не фиксируется.
	msg, err := domain.NewOrderCreatedMessage(order, reserved)
	if err != nil {
		return domain.Order{}, nil, err
	}

	for id, variant := range variants {
		inst := s.instances[id]
		inst.StockQuantity = variant.Stock
		s.instances[id] = inst
	}
	s.nextOrderID = order.ID
	s.orders[order.ID] = copyOrder(order)
	s.enqueueLocked(msg)
	s.appendTimelineLocked(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineEventOrderCreated,
		Reason:   "order placed",
		Occurred: order.OrderDate,
	})

	return order, reserved, nil
}

func (r *orderRepositoryInMemory) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (r *orderRepositoryInMemory) ListOrders(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if userID != "" && order.UserID != userID {
			continue
		}
		result = append(result, copyOrder(order))
	}

	// Новые заказы первыми.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateOrder меняет статус и заметки; пустой статус сохраняет текущий.
// Событие order.updated и запись timeline при смене статуса фиксируются
// под тем же мьютексом.
func (r *orderRepositoryInMemory) UpdateOrder(_ context.Context, id int64, status, notes string) (domain.Order, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	previous := order.Status
	if status != "" {
		order.Status = status
	}
	order.Notes = notes

	msg, err := domain.NewOrderUpdatedMessage(order)
	if err != nil {
		return domain.Order{}, err
	}

	s.orders[id] = order
	s.enqueueLocked(msg)
	if previous != order.Status {
		s.appendTimelineLocked(domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineEventOrderStatusChanged,
			Reason:   previous + " -> " + order.Status,
			Occurred: time.Now().UTC(),
		})
	}

	return copyOrder(order), nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
