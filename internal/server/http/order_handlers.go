package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// userIDHeader — заголовок с идентификатором покупателя.
const userIDHeader = "X-User-Id"

// OrderHandler обслуживает маршруты заказов.
type OrderHandler struct {
	service *order.Service
	logger  *log.Entry
}

// NewOrderHandler создаёт обработчик заказов.
func NewOrderHandler(service *order.Service, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.WithField("component", "http_order_handler")
	}
	return &OrderHandler{service: service, logger: logger}
}

// Create обрабатывает POST /api/orders.
func (h *OrderHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return writeInvalid(c, "заголовок X-User-Id обязателен")
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	lines := make([]domain.OrderLineRequest, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.OrderLineRequest{
			ProductInstanceID: line.ProductInstanceID,
			Quantity:          line.Quantity,
		})
	}

	created, reserved, err := h.service.Create(c.Request().Context(), userID, toCustomerInfo(req.Customer), lines)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, createOrderResponse{
		Order: toOrderPayload(created),
		Lines: toLineResults(reserved),
	})
}

// Get обрабатывает GET /api/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор заказа")
	}

	found, err := h.service.Get(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderPayload(found))
}

// List обрабатывает GET /api/orders.
func (h *OrderHandler) List(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		userID = c.Request().Header.Get(userIDHeader)
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return writeInvalid(c, "некорректное значение limit")
		}
		limit = parsed
	}

	orders, err := h.service.List(c.Request().Context(), userID, limit)
	if err != nil {
		return writeError(c, err)
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, o := range orders {
		payload = append(payload, toOrderPayload(o))
	}
	return c.JSON(http.StatusOK, payload)
}

// Update обрабатывает PUT /api/orders/:id.
func (h *OrderHandler) Update(c echo.Context) error {
	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор заказа")
	}

	var req updateOrderRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}

	updated, err := h.service.Update(c.Request().Context(), orderID, req.Status, req.Notes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderPayload(updated))
}

// Timeline обрабатывает GET /api/orders/:id/timeline.
func (h *OrderHandler) Timeline(c echo.Context) error {
	orderID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор заказа")
	}

	events, err := h.service.Timeline(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}

	payload := make([]timelineEventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, timelineEventPayload{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return c.JSON(http.StatusOK, payload)
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
