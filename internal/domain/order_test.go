package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func validOrder() domain.Order {
	return domain.Order{
		ID:     1,
		UserID: "user-1",
		Customer: domain.CustomerInfo{
			FirstName: "Anna",
			LastName:  "Koval",
			Email:     "anna@example.com",
		},
		OrderDate: time.Now().UTC(),
		Status:    domain.OrderStatusCreated,
		Records: []domain.OrderRecord{
			{ProductInstanceID: 1, ProductName: "Shirt", PriceMinor: 1000, Quantity: 2, Fulfillment: domain.FulfillmentFull},
		},
	}
}

func TestOrder_ValidateInvariantsOK(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestOrder_ValidateInvariantsErrors(t *testing.T) {
	order := validOrder()
	order.UserID = ""
	order.Records = nil

	errs := order.ValidateInvariants()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !errors.Is(errs[0], domain.ErrUserIDRequired) {
		t.Fatalf("expected user id error, got %v", errs[0])
	}
	if !errors.Is(errs[1], domain.ErrEmptyOrder) {
		t.Fatalf("expected empty order error, got %v", errs[1])
	}
}

func TestOrder_ValidateInvariantsRecordQuantity(t *testing.T) {
	order := validOrder()
	order.Records[0].Quantity = 0

	errs := order.ValidateInvariants()
	found := false
	for _, err := range errs {
		if errors.Is(err, domain.ErrLineQtyInvalid) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected quantity error, got %v", errs)
	}
}
