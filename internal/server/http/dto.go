package http

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// createOrderRequest — тело POST /api/orders.
type createOrderRequest struct {
	Customer customerPayload  `json:"customer"`
	Lines    []orderLineInput `json:"orderRecords" validate:"required,min=1,dive"`
}

type orderLineInput struct {
	ProductInstanceID int64 `json:"productInstanceId" validate:"required,gt=0"`
	Quantity          int32 `json:"quantity" validate:"required,gte=1"`
}

type customerPayload struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email" validate:"omitempty,email"`
	PhoneNumber     string `json:"phoneNumber"`
	City            string `json:"city"`
	DeliveryAddress string `json:"deliveryAddress"`
}

// updateOrderRequest — тело PUT /api/orders/:id; меняются только статус и заметки.
type updateOrderRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type orderLineResult struct {
	ProductInstanceID int64  `json:"productInstanceId"`
	ProductName       string `json:"productName,omitempty"`
	PriceMinor        int64  `json:"price,omitempty"`
	Requested         int32  `json:"requested"`
	Quantity          int32  `json:"quantity"`
	Fulfillment       string `json:"fulfillment"`
}

type orderRecordPayload struct {
	ProductInstanceID int64  `json:"productInstanceId"`
	ProductName       string `json:"productName"`
	PriceMinor        int64  `json:"price"`
	Quantity          int32  `json:"quantity"`
	Fulfillment       string `json:"fulfillment"`
}

type orderPayload struct {
	ID              int64                `json:"id"`
	UserID          string               `json:"userId"`
	Customer        customerPayload      `json:"customer"`
	OrderDate       time.Time            `json:"orderDate"`
	Status          string               `json:"status"`
	PaymentReceived bool                 `json:"paymentReceived"`
	Notes           string               `json:"notes,omitempty"`
	Records         []orderRecordPayload `json:"orderRecords"`
}

// createOrderResponse дополняет заказ построчным отчётом резервирования,
// включая пропущенные позиции, которых в заказе нет.
type createOrderResponse struct {
	Order orderPayload      `json:"order"`
	Lines []orderLineResult `json:"lines"`
}

type timelineEventPayload struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// createCategoryRequest — тело POST /api/categories.
type createCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type categoryPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// createProductRequest — тело POST /api/products.
type createProductRequest struct {
	Name        string                 `json:"name" validate:"required"`
	Description string                 `json:"description"`
	CategoryID  int64                  `json:"categoryId" validate:"required,gt=0"`
	Instances   []productInstanceInput `json:"instances" validate:"dive"`
}

type productInstanceInput struct {
	PriceMinor            int64  `json:"priceMinor" validate:"required,gt=0"`
	AbsoluteDiscountMinor int64  `json:"absoluteDiscountMinor"`
	PercentageDiscount    int    `json:"percentageDiscount"`
	SKU                   string `json:"sku" validate:"required"`
	Color                 string `json:"color"`
	Size                  string `json:"size"`
	StockQuantity         int32  `json:"stockQuantity" validate:"gte=0"`
}

type productInstancePayload struct {
	ID                    int64  `json:"id"`
	ProductID             int64  `json:"productId"`
	PriceMinor            int64  `json:"priceMinor"`
	AbsoluteDiscountMinor int64  `json:"absoluteDiscountMinor"`
	PercentageDiscount    int    `json:"percentageDiscount"`
	SKU                   string `json:"sku"`
	Color                 string `json:"color,omitempty"`
	Size                  string `json:"size,omitempty"`
	StockQuantity         int32  `json:"stockQuantity"`
}

type productPayload struct {
	ID          int64                    `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	CategoryID  int64                    `json:"categoryId"`
	Rating      float64                  `json:"rating"`
	TimesRated  int                      `json:"timesRated"`
	Instances   []productInstancePayload `json:"instances"`
}

// restockRequest — тело POST /api/instances/:id/stock.
type restockRequest struct {
	Quantity int32 `json:"quantity" validate:"required,gt=0"`
}

// rateRequest — тело POST /api/products/:id/feedback.
type rateRequest struct {
	Value int `json:"value" validate:"required,gte=1,lte=5"`
}

func toCustomerInfo(p customerPayload) domain.CustomerInfo {
	return domain.CustomerInfo{
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		PhoneNumber:     p.PhoneNumber,
		City:            p.City,
		DeliveryAddress: p.DeliveryAddress,
	}
}

func toOrderPayload(order domain.Order) orderPayload {
	records := make([]orderRecordPayload, 0, len(order.Records))
	for _, rec := range order.Records {
		records = append(records, orderRecordPayload{
			ProductInstanceID: rec.ProductInstanceID,
			ProductName:       rec.ProductName,
			PriceMinor:        rec.PriceMinor,
			Quantity:          rec.Quantity,
			Fulfillment:       string(rec.Fulfillment),
		})
	}
	return orderPayload{
		ID:     order.ID,
		UserID: order.UserID,
		Customer: customerPayload{
			FirstName:       order.Customer.FirstName,
			LastName:        order.Customer.LastName,
			Email:           order.Customer.Email,
			PhoneNumber:     order.Customer.PhoneNumber,
			City:            order.Customer.City,
			DeliveryAddress: order.Customer.DeliveryAddress,
		},
		OrderDate:       order.OrderDate,
		Status:          order.Status,
		PaymentReceived: order.PaymentReceived,
		Notes:           order.Notes,
		Records:         records,
	}
}

func toLineResults(reserved []domain.ReservedLine) []orderLineResult {
	lines := make([]orderLineResult, 0, len(reserved))
	for _, line := range reserved {
		lines = append(lines, orderLineResult{
			ProductInstanceID: line.ProductInstanceID,
			ProductName:       line.ProductName,
			PriceMinor:        line.PriceMinor,
			Requested:         line.Requested,
			Quantity:          line.Quantity,
			Fulfillment:       string(line.Fulfillment),
		})
	}
	return lines
}

func toProductPayload(product domain.Product) productPayload {
	instances := make([]productInstancePayload, 0, len(product.Instances))
	for _, inst := range product.Instances {
		instances = append(instances, toInstancePayload(inst))
	}
	return productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		CategoryID:  product.CategoryID,
		Rating:      product.Rating,
		TimesRated:  product.TimesRated,
		Instances:   instances,
	}
}

func toInstancePayload(inst domain.ProductInstance) productInstancePayload {
	return productInstancePayload{
		ID:                    inst.ID,
		ProductID:             inst.ProductID,
		PriceMinor:            inst.PriceMinor,
		AbsoluteDiscountMinor: inst.AbsoluteDiscountMinor,
		PercentageDiscount:    inst.PercentageDiscount,
		SKU:                   inst.SKU,
		Color:                 inst.Color,
		Size:                  inst.Size,
		StockQuantity:         inst.StockQuantity,
	}
}
