package domain

import "time"

// OrderStatusCreated — начальный статус нового заказа. Статус хранится
// свободной строкой: исторические клиенты присылают собственные значения,
// и жёсткий конечный автомат сломал бы их.
const OrderStatusCreated = "Created"

// CustomerInfo — контактные данные покупателя, снимок на момент заказа.
// Хранится инлайн в строке заказа.
type CustomerInfo struct {
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	City            string
	DeliveryAddress string
}

// OrderRecord — позиция заказа со снапшотом имени товара и цены на момент
// фиксации. Снапшот не меняется при последующих правках каталога.
type OrderRecord struct {
	ProductInstanceID int64
	ProductName       string
	PriceMinor        int64
	Quantity          int32
	// Fulfillment — как позиция была удовлетворена: полностью или с урезанием.
	Fulfillment Fulfillment
}

// Order агрегирует заказ, контакт покупателя и позиции.
type Order struct {
	ID       int64
	UserID   string
	Customer CustomerInfo
	// OrderDate — момент фиксации заказа (UTC).
	OrderDate time.Time
	Status    string
	// PaymentReceived всегда false при создании; оплату подтверждает внешний контур.
	PaymentReceived bool
	Notes           string
	Records         []OrderRecord
}

// ValidateInvariants проверяет инварианты сохранённого заказа.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserIDRequired)
	}
	if len(o.Records) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	for _, rec := range o.Records {
		if rec.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if rec.PriceMinor <= 0 {
			errs = append(errs, ErrPriceInvalid)
		}
	}

	return errs
}
