package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Типы доменных событий, публикуемых через transactional outbox.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

// OrderEventLine — построчная часть события order.created.
type OrderEventLine struct {
	ProductInstanceID int64  `json:"product_instance_id"`
	Requested         int32  `json:"requested"`
	Quantity          int32  `json:"quantity"`
	Fulfillment       string `json:"fulfillment"`
}

// OrderCreatedEvent — payload события order.created.
type OrderCreatedEvent struct {
	OrderID   int64            `json:"order_id"`
	UserID    string           `json:"user_id"`
	Status    string           `json:"status"`
	OrderDate time.Time        `json:"order_date"`
	Lines     []OrderEventLine `json:"lines"`
}

// OrderUpdatedEvent — payload события order.updated.
type OrderUpdatedEvent struct {
	OrderID int64  `json:"order_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

// NewOrderCreatedMessage собирает outbox-сообщение order.created.
// Вызывается хранилищем внутри транзакции создания заказа, чтобы событие
// фиксировалось тем же коммитом, что и сам заказ.
func NewOrderCreatedMessage(order Order, reserved []ReservedLine) (OutboxMessage, error) {
	event := OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		OrderDate: order.OrderDate,
		Lines:     make([]OrderEventLine, 0, len(reserved)),
	}
	for _, line := range reserved {
		event.Lines = append(event.Lines, OrderEventLine{
			ProductInstanceID: line.ProductInstanceID,
			Requested:         line.Requested,
			Quantity:          line.Quantity,
			Fulfillment:       string(line.Fulfillment),
		})
	}
	return newOrderMessage(order.ID, EventOrderCreated, event)
}

// NewOrderUpdatedMessage собирает outbox-сообщение order.updated.
func NewOrderUpdatedMessage(order Order) (OutboxMessage, error) {
	return newOrderMessage(order.ID, EventOrderUpdated, OrderUpdatedEvent{
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
		Notes:   order.Notes,
	})
}

func newOrderMessage(orderID int64, eventType string, payload any) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: "order",
		AggregateID:   strconv.FormatInt(orderID, 10),
		EventType:     eventType,
		Payload:       body,
	}, nil
}
