package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// timelineRepositoryInMemory хранит события жизненного цикла заказов поверх
// общего Store; записи репозитория заказов видны здесь сразу.
type timelineRepositoryInMemory struct {
	store *Store
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepositoryInMemory{store: store}
}

// appendTimelineLocked добавляет событие под захваченным s.mu.
func (s *Store) appendTimelineLocked(event domain.TimelineEvent) {
	s.timeline[event.OrderID] = append(s.timeline[event.OrderID], event)
}

func (r *timelineRepositoryInMemory) Append(_ context.Context, event domain.TimelineEvent) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendTimelineLocked(event)
	return nil
}

func (r *timelineRepositoryInMemory) List(_ context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := append([]domain.TimelineEvent(nil), s.timeline[orderID]...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
