package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func variants(state map[int64]domain.VariantState) map[int64]*domain.VariantState {
	result := make(map[int64]*domain.VariantState, len(state))
	for id, v := range state {
		v.ID = id
		copied := v
		result[id] = &copied
	}
	return result
}

func TestReserveLines_FullAcceptance(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{
		1: {ProductName: "Shirt", PriceMinor: 1000, Stock: 5},
		2: {ProductName: "Mug", PriceMinor: 500, Stock: 2},
	})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 1, Quantity: 2},
		{ProductInstanceID: 2, Quantity: 2},
	}, vs)

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if line.Fulfillment != domain.FulfillmentFull {
			t.Fatalf("line %d: expected full, got %s", i, line.Fulfillment)
		}
		if line.Quantity != 2 {
			t.Fatalf("line %d: expected qty 2, got %d", i, line.Quantity)
		}
	}
	if vs[1].Stock != 3 || vs[2].Stock != 0 {
		t.Fatalf("unexpected post-state: A=%d B=%d", vs[1].Stock, vs[2].Stock)
	}
}

func TestReserveLines_Clamp(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{
		1: {ProductName: "Shirt", PriceMinor: 1000, Stock: 3},
	})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 1, Quantity: 5},
	}, vs)

	if lines[0].Fulfillment != domain.FulfillmentClamped {
		t.Fatalf("expected clamped, got %s", lines[0].Fulfillment)
	}
	if lines[0].Quantity != 3 || lines[0].Requested != 5 {
		t.Fatalf("expected qty 3 of requested 5, got %d of %d", lines[0].Quantity, lines[0].Requested)
	}
	if vs[1].Stock != 0 {
		t.Fatalf("expected stock 0, got %d", vs[1].Stock)
	}
}

func TestReserveLines_SkipOutOfStock(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{
		1: {ProductName: "Shirt", PriceMinor: 1000, Stock: 0},
		2: {ProductName: "Mug", PriceMinor: 500, Stock: 4},
	})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 1, Quantity: 1},
		{ProductInstanceID: 2, Quantity: 1},
	}, vs)

	if lines[0].Fulfillment != domain.FulfillmentSkippedOutOfStock {
		t.Fatalf("expected skipped:out_of_stock, got %s", lines[0].Fulfillment)
	}
	if lines[0].Quantity != 0 {
		t.Fatalf("skipped line must have zero quantity, got %d", lines[0].Quantity)
	}
	if lines[1].Fulfillment != domain.FulfillmentFull {
		t.Fatalf("expected full, got %s", lines[1].Fulfillment)
	}
	if vs[2].Stock != 3 {
		t.Fatalf("expected stock 3, got %d", vs[2].Stock)
	}
}

func TestReserveLines_SkipMissing(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 42, Quantity: 1},
	}, vs)

	if lines[0].Fulfillment != domain.FulfillmentSkippedMissing {
		t.Fatalf("expected skipped:missing, got %s", lines[0].Fulfillment)
	}
	if lines[0].ProductInstanceID != 42 {
		t.Fatalf("missing line must keep the requested id, got %d", lines[0].ProductInstanceID)
	}
}

// Повторная позиция с тем же вариантом видит остаток после предыдущей.
func TestReserveLines_DuplicateLinesCascade(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{
		1: {ProductName: "Shirt", PriceMinor: 1000, Stock: 3},
	})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 1, Quantity: 2},
		{ProductInstanceID: 1, Quantity: 2},
	}, vs)

	if lines[0].Fulfillment != domain.FulfillmentFull || lines[0].Quantity != 2 {
		t.Fatalf("first line: expected full/2, got %s/%d", lines[0].Fulfillment, lines[0].Quantity)
	}
	if lines[1].Fulfillment != domain.FulfillmentClamped || lines[1].Quantity != 1 {
		t.Fatalf("second line: expected clamped/1, got %s/%d", lines[1].Fulfillment, lines[1].Quantity)
	}
	if vs[1].Stock != 0 {
		t.Fatalf("expected stock 0, got %d", vs[1].Stock)
	}
}

func TestReserveLines_OrderPreserved(t *testing.T) {
	vs := variants(map[int64]domain.VariantState{
		1: {ProductName: "A", PriceMinor: 100, Stock: 1},
		2: {ProductName: "B", PriceMinor: 100, Stock: 1},
	})

	lines := domain.ReserveLines([]domain.OrderLineRequest{
		{ProductInstanceID: 2, Quantity: 1},
		{ProductInstanceID: 1, Quantity: 1},
	}, vs)

	if lines[0].ProductInstanceID != 2 || lines[1].ProductInstanceID != 1 {
		t.Fatalf("lines must keep request order: got %d, %d", lines[0].ProductInstanceID, lines[1].ProductInstanceID)
	}
}

func TestAcceptedRecords_FiltersSkipped(t *testing.T) {
	records := domain.AcceptedRecords([]domain.ReservedLine{
		{ProductInstanceID: 1, ProductName: "A", PriceMinor: 100, Quantity: 2, Fulfillment: domain.FulfillmentFull},
		{ProductInstanceID: 2, Requested: 1, Fulfillment: domain.FulfillmentSkippedOutOfStock},
		{ProductInstanceID: 3, ProductName: "C", PriceMinor: 300, Quantity: 1, Fulfillment: domain.FulfillmentClamped},
	})

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ProductInstanceID != 1 || records[1].ProductInstanceID != 3 {
		t.Fatalf("unexpected records: %+v", records)
	}
	for _, rec := range records {
		if rec.Quantity <= 0 {
			t.Fatalf("record quantity must be positive: %+v", rec)
		}
	}
}
