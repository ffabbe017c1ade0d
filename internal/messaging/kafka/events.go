package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// EventType — тип события в топиках магазина.
type EventType string

// Типы событий заказов и каталога.
const (
	EventTypeOrderCreated     = EventType(domain.EventOrderCreated)
	EventTypeOrderUpdated     = EventType(domain.EventOrderUpdated)
	EventTypeProductRestocked EventType = "product.restocked"
	EventTypeProductRated     EventType = "product.rated"
)

// Топики магазина.
const (
	TopicOrderEvents     = "shop.order.events"
	TopicCatalogEvents   = "shop.catalog.events"
	TopicDeadLetterQueue = "shop.dlq"
)

// Envelope — wire-формат сообщений во всех топиках магазина: служебные поля
// outbox-записи плюс доменный payload. Ключ сообщения — AggregateID.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение в wire-формат.
func NewEnvelope(msg domain.OutboxMessage) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}

// Key возвращает partition key: события одного агрегата попадают в одну
// партицию и сохраняют порядок.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// ParseEnvelope декодирует сообщение из топика магазина.
func ParseEnvelope(value []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("event envelope has no event_type")
	}
	return env, nil
}

// OrderCreated декодирует payload события order.created.
func (e Envelope) OrderCreated() (domain.OrderCreatedEvent, error) {
	if e.EventType != domain.EventOrderCreated {
		return domain.OrderCreatedEvent{}, fmt.Errorf("envelope is %s, not %s", e.EventType, domain.EventOrderCreated)
	}
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return domain.OrderCreatedEvent{}, fmt.Errorf("unmarshal order.created payload: %w", err)
	}
	return event, nil
}

// OrderUpdated декодирует payload события order.updated.
func (e Envelope) OrderUpdated() (domain.OrderUpdatedEvent, error) {
	if e.EventType != domain.EventOrderUpdated {
		return domain.OrderUpdatedEvent{}, fmt.Errorf("envelope is %s, not %s", e.EventType, domain.EventOrderUpdated)
	}
	var event domain.OrderUpdatedEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return domain.OrderUpdatedEvent{}, fmt.Errorf("unmarshal order.updated payload: %w", err)
	}
	return event, nil
}

// DeadLetter — единый формат сообщений в shop.dlq: исходное сообщение плюс
// причина отказа. Его пишут и consumer после исчерпания retry, и outbox
// worker; cmd/dlq-reprocess по нему восстанавливает исходное сообщение.
type DeadLetter struct {
	OriginalTopic string          `json:"original_topic,omitempty"`
	Key           string          `json:"key,omitempty"`
	Value         json.RawMessage `json:"value"`
	Error         string          `json:"error"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// ParseDeadLetter декодирует сообщение из shop.dlq.
func ParseDeadLetter(value []byte) (DeadLetter, error) {
	var dl DeadLetter
	if err := json.Unmarshal(value, &dl); err != nil {
		return DeadLetter{}, fmt.Errorf("unmarshal dead letter: %w", err)
	}
	if len(dl.Value) == 0 {
		return DeadLetter{}, fmt.Errorf("dead letter has no original value")
	}
	return dl, nil
}
