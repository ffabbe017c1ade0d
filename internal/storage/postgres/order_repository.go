package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	// Бюджет одной операции хранилища; по истечении транзакция откатывается,
	// а вызывающий получает ErrStoreUnavailable.
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// CreateOrder выполняет всю резервацию одной транзакцией: блокирует строки
// вариантов (FOR UPDATE, по возрастанию id — это исключает deadlock между
// конкурентными заказами), применяет политику резервирования, сохраняет заказ
// с позициями и списывает остатки. Либо фиксируется всё, либо ничего.
func (r *orderRepository) CreateOrder(ctx context.Context, userID string, customer domain.CustomerInfo, lines []domain.OrderLineRequest) (domain.Order, []domain.ReservedLine, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, nil, translateTxError("begin create order tx", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	variants, err := lockVariants(ctx, tx, variantIDs(lines))
	if err != nil {
		return domain.Order{}, nil, err
	}

	reserved := domain.ReserveLines(lines, variants)
	records := domain.AcceptedRecords(reserved)
	if len(records) == 0 {
		return domain.Order{}, reserved, domain.ErrEmptyOrder
	}

	order := domain.Order{
		UserID:          userID,
		Customer:        customer,
		OrderDate:       time.Now().UTC(),
		Status:          domain.OrderStatusCreated,
		PaymentReceived: false,
		Records:         records,
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			user_id,
			customer_first_name, customer_last_name, customer_email,
			customer_phone_number, customer_city, customer_delivery_address,
			order_date, status, payment_received, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`,
		order.UserID,
		customer.FirstName, customer.LastName, customer.Email,
		customer.PhoneNumber, customer.City, customer.DeliveryAddress,
		order.OrderDate, order.Status, order.PaymentReceived, order.Notes,
	).Scan(&order.ID); err != nil {
		return domain.Order{}, nil, translateTxError("insert order", err)
	}

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_records (
				order_id, product_instance_id, product_name, price_minor, quantity, fulfillment
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, rec.ProductInstanceID, rec.ProductName, rec.PriceMinor, rec.Quantity, string(rec.Fulfillment),
		); err != nil {
			return domain.Order{}, nil, translateTxError("insert order record", err)
		}
	}

	// Остатки уже уменьшены политикой в variants; остаётся зафиксировать их
	// в тех же строках, что держим под блокировкой.
	for _, id := range sortedVariantIDs(variants) {
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_instances
			SET stock_quantity = $2
			WHERE id = $1
		`, id, variants[id].Stock); err != nil {
			return domain.Order{}, nil, translateTxError("update variant stock", err)
		}
	}

	// Событие и запись таймлайна входят в ту же транзакцию: либо заказ
	// фиксируется вместе с order.created, либо не фиксируется ничего.
	msg, err := domain.NewOrderCreatedMessage(order, reserved)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if _, err := insertOutboxMessage(ctx, tx, msg); err != nil {
		return domain.Order{}, nil, translateTxError("enqueue order.created", err)
	}
	if err := insertTimelineEvent(ctx, tx, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineEventOrderCreated,
		Reason:   "order placed",
		Occurred: order.OrderDate,
	}); err != nil {
		return domain.Order{}, nil, translateTxError("append order timeline", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, nil, translateTxError("commit create order", err)
	}
	committed = true

	return order, reserved, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderQuery+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, translateTxError("select order", err)
	}

	records, err := r.loadRecords(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Records = records

	return order, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := selectOrderQuery
	args := make([]any, 0, 2)
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY order_date DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateTxError("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		records, err := r.loadRecords(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Records = records
	}

	return orders, nil
}

// UpdateOrder меняет только статус и заметки; позиции и остатки не трогает.
// Пустой статус сохраняет текущий. Строка заказа блокируется на время
// транзакции, событие order.updated и запись таймлайна входят в тот же коммит.
func (r *orderRepository) UpdateOrder(ctx context.Context, id int64, status, notes string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, translateTxError("begin update order tx", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := scanOrder(tx.QueryRowContext(ctx, selectOrderQuery+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, translateTxError("lock order for update", err)
	}

	previous := order.Status
	if status != "" {
		order.Status = status
	}
	order.Notes = notes

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    notes = $3
		WHERE id = $1
	`, id, order.Status, order.Notes); err != nil {
		return domain.Order{}, translateTxError("update order", err)
	}

	msg, err := domain.NewOrderUpdatedMessage(order)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := insertOutboxMessage(ctx, tx, msg); err != nil {
		return domain.Order{}, translateTxError("enqueue order.updated", err)
	}
	if previous != order.Status {
		if err := insertTimelineEvent(ctx, tx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineEventOrderStatusChanged,
			Reason:   previous + " -> " + order.Status,
			Occurred: time.Now().UTC(),
		}); err != nil {
			return domain.Order{}, translateTxError("append status timeline", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, translateTxError("commit update order", err)
	}
	committed = true

	return r.GetOrder(ctx, id)
}

const selectOrderQuery = `
	SELECT id, user_id,
	       customer_first_name, customer_last_name, customer_email,
	       customer_phone_number, customer_city, customer_delivery_address,
	       order_date, status, payment_received, notes
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID, &order.UserID,
		&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email,
		&order.Customer.PhoneNumber, &order.Customer.City, &order.Customer.DeliveryAddress,
		&order.OrderDate, &order.Status, &order.PaymentReceived, &order.Notes,
	)
	return order, err
}

func (r *orderRepository) loadRecords(ctx context.Context, orderID int64) ([]domain.OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_instance_id, product_name, price_minor, quantity, fulfillment
		FROM order_records
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.OrderRecord, 0)
	for rows.Next() {
		var rec domain.OrderRecord
		var fulfillment string
		if err := rows.Scan(&rec.ProductInstanceID, &rec.ProductName, &rec.PriceMinor, &rec.Quantity, &fulfillment); err != nil {
			return nil, fmt.Errorf("scan order record: %w", err)
		}
		rec.Fulfillment = domain.Fulfillment(fulfillment)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order records: %w", err)
	}

	return records, nil
}

// lockVariants читает варианты вместе с именем товара под FOR UPDATE.
// Порядок блокировки — по возрастанию id, одинаковый для всех транзакций.
func lockVariants(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*domain.VariantState, error) {
	variants := make(map[int64]*domain.VariantState, len(ids))
	if len(ids) == 0 {
		return variants, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT pi.id, p.name, pi.price_minor, pi.stock_quantity
		FROM product_instances pi
		JOIN products p ON p.id = pi.product_id
		WHERE pi.id IN (%s)
		ORDER BY pi.id ASC
		FOR UPDATE OF pi
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, translateTxError("lock variants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state domain.VariantState
		if err := rows.Scan(&state.ID, &state.ProductName, &state.PriceMinor, &state.Stock); err != nil {
			return nil, fmt.Errorf("scan locked variant: %w", err)
		}
		variants[state.ID] = &state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked variants: %w", err)
	}

	return variants, nil
}

// variantIDs возвращает уникальные идентификаторы вариантов по возрастанию.
func variantIDs(lines []domain.OrderLineRequest) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductInstanceID]; ok {
			continue
		}
		seen[line.ProductInstanceID] = struct{}{}
		ids = append(ids, line.ProductInstanceID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedVariantIDs(variants map[int64]*domain.VariantState) []int64 {
	ids := make([]int64, 0, len(variants))
	for id := range variants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var _ domain.OrderRepository = (*orderRepository)(nil)
