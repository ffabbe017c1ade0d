package domain

// Fulfillment описывает, как позиция запроса была удовлетворена.
type Fulfillment string

const (
	// FulfillmentFull — позиция принята в запрошенном количестве.
	FulfillmentFull Fulfillment = "full"
	// FulfillmentClamped — количество урезано до доступного остатка.
	FulfillmentClamped Fulfillment = "clamped"
	// FulfillmentSkippedOutOfStock — позиция пропущена: остаток равен нулю.
	FulfillmentSkippedOutOfStock Fulfillment = "skipped:out_of_stock"
	// FulfillmentSkippedMissing — позиция пропущена: вариант не найден.
	FulfillmentSkippedMissing Fulfillment = "skipped:missing"
)

// Accepted сообщает, попадает ли позиция с таким исходом в заказ.
func (f Fulfillment) Accepted() bool {
	return f == FulfillmentFull || f == FulfillmentClamped
}

// OrderLineRequest — одна позиция запроса на создание заказа.
type OrderLineRequest struct {
	ProductInstanceID int64
	Quantity          int32
}

// VariantState — состояние варианта, прочитанное под блокировкой внутри
// транзакции. Stock мутируется по мере резервирования, поэтому повторная
// позиция с тем же вариантом видит остаток после предыдущей.
type VariantState struct {
	ID          int64
	ProductName string
	PriceMinor  int64
	Stock       int32
}

// ReservedLine — результат применения политики резервирования к одной позиции.
type ReservedLine struct {
	ProductInstanceID int64
	ProductName       string
	PriceMinor        int64
	// Requested — исходно запрошенное количество.
	Requested int32
	// Quantity — принятое количество; 0 для пропущенных позиций.
	Quantity    int32
	Fulfillment Fulfillment
}

// ReserveLines применяет политику резервирования к позициям запроса в порядке
// их следования: отсутствующий вариант и нулевой остаток пропускаются, нехватка
// остатка урезает количество до доступного. Остатки в variants уменьшаются на
// принятое количество и после вызова отражают итоговое состояние склада.
func ReserveLines(lines []OrderLineRequest, variants map[int64]*VariantState) []ReservedLine {
	result := make([]ReservedLine, 0, len(lines))

	for _, line := range lines {
		variant, ok := variants[line.ProductInstanceID]
		if !ok {
			result = append(result, ReservedLine{
				ProductInstanceID: line.ProductInstanceID,
				Requested:         line.Quantity,
				Fulfillment:       FulfillmentSkippedMissing,
			})
			continue
		}

		reserved := ReservedLine{
			ProductInstanceID: variant.ID,
			ProductName:       variant.ProductName,
			PriceMinor:        variant.PriceMinor,
			Requested:         line.Quantity,
		}

		switch {
		case variant.Stock == 0:
			reserved.Fulfillment = FulfillmentSkippedOutOfStock
		case variant.Stock >= line.Quantity:
			reserved.Quantity = line.Quantity
			reserved.Fulfillment = FulfillmentFull
			variant.Stock -= line.Quantity
		default:
			reserved.Quantity = variant.Stock
			reserved.Fulfillment = FulfillmentClamped
			variant.Stock = 0
		}

		result = append(result, reserved)
	}

	return result
}

// AcceptedRecords превращает принятые позиции в записи заказа.
func AcceptedRecords(lines []ReservedLine) []OrderRecord {
	records := make([]OrderRecord, 0, len(lines))
	for _, line := range lines {
		if !line.Fulfillment.Accepted() {
			continue
		}
		records = append(records, OrderRecord{
			ProductInstanceID: line.ProductInstanceID,
			ProductName:       line.ProductName,
			PriceMinor:        line.PriceMinor,
			Quantity:          line.Quantity,
			Fulfillment:       line.Fulfillment,
		})
	}
	return records
}
