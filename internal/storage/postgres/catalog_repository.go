package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var category domain.Category
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (name)
		VALUES ($1)
		RETURNING id, name
	`, name).Scan(&category.ID, &category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Category{}, fmt.Errorf("category %q: %w", name, domain.ErrVersionConflict)
		}
		return domain.Category{}, translateTxError("insert category", err)
	}

	return category, nil
}

func (r *catalogRepository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, translateTxError("begin create product tx", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO products (name, description, category_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, product.Name, product.Description, product.CategoryID).Scan(&product.ID); err != nil {
		if isForeignKeyViolation(err) {
			return domain.Product{}, domain.ErrCategoryNotFound
		}
		return domain.Product{}, translateTxError("insert product", err)
	}

	for i := range product.Instances {
		inst := &product.Instances[i]
		inst.ProductID = product.ID
		if err := insertInstanceTx(ctx, tx, inst); err != nil {
			return domain.Product{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, translateTxError("commit create product", err)
	}
	committed = true

	return product, nil
}

func (r *catalogRepository) CreateInstance(ctx context.Context, instance domain.ProductInstance) (domain.ProductInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProductInstance{}, translateTxError("begin create instance tx", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := insertInstanceTx(ctx, tx, &instance); err != nil {
		return domain.ProductInstance{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.ProductInstance{}, translateTxError("commit create instance", err)
	}
	committed = true

	return instance, nil
}

func insertInstanceTx(ctx context.Context, tx *sql.Tx, inst *domain.ProductInstance) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO product_instances (
			product_id, price_minor, absolute_discount_minor, percentage_discount,
			sku, color, size, stock_quantity
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`,
		inst.ProductID, inst.PriceMinor, inst.AbsoluteDiscountMinor, inst.PercentageDiscount,
		inst.SKU, inst.Color, inst.Size, inst.StockQuantity,
	).Scan(&inst.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		return translateTxError("insert product instance", err)
	}
	return nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, category_id, rating, times_rated
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Description,
		&product.CategoryID, &product.Rating, &product.TimesRated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, translateTxError("select product", err)
	}

	instances, err := r.loadInstances(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.Instances = instances

	return product, nil
}

func (r *catalogRepository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT p.id, p.name, p.description, p.category_id, p.rating, p.times_rated
		FROM products p`
	args := make([]any, 0, 2)

	if filter.Category != "" {
		query += ` JOIN categories c ON c.id = p.category_id`
	}
	where := make([]string, 0, 2)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("c.name = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		where = append(where, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	// Сортировка только по известным выражениям, пользовательский ввод
	// в ORDER BY не попадает.
	direction := "DESC"
	if filter.SortAsc {
		direction = "ASC"
	}
	switch {
	case filter.SortByPrice:
		query += fmt.Sprintf(`
		ORDER BY (SELECT MIN(pi.price_minor) FROM product_instances pi WHERE pi.product_id = p.id) %s NULLS LAST, p.id ASC`, direction)
	case filter.SortByRating:
		query += fmt.Sprintf(`
		ORDER BY p.rating %s, p.id ASC`, direction)
	default:
		query += `
		ORDER BY p.id ASC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateTxError("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.Description,
			&product.CategoryID, &product.Rating, &product.TimesRated,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	for i := range products {
		instances, err := r.loadInstances(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Instances = instances
	}

	return products, nil
}

// AddStock пополняет остаток варианта; qty валидируется на уровне сервиса.
func (r *catalogRepository) AddStock(ctx context.Context, instanceID int64, qty int32) (domain.ProductInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var inst domain.ProductInstance
	err := r.db.QueryRowContext(ctx, `
		UPDATE product_instances
		SET stock_quantity = stock_quantity + $2
		WHERE id = $1
		RETURNING id, product_id, price_minor, absolute_discount_minor, percentage_discount,
		          sku, color, size, stock_quantity
	`, instanceID, qty).Scan(
		&inst.ID, &inst.ProductID, &inst.PriceMinor, &inst.AbsoluteDiscountMinor,
		&inst.PercentageDiscount, &inst.SKU, &inst.Color, &inst.Size, &inst.StockQuantity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductInstance{}, domain.ErrVariantNotFound
		}
		return domain.ProductInstance{}, translateTxError("add stock", err)
	}

	return inst, nil
}

// AddRating пересчитывает средний рейтинг атомарно в одной строке:
// new = (rating*times_rated + value) / (times_rated + 1).
func (r *catalogRepository) AddRating(ctx context.Context, productID int64, value int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET rating = (rating * times_rated + $2) / (times_rated + 1),
		    times_rated = times_rated + 1
		WHERE id = $1
	`, productID, value)
	if err != nil {
		return domain.Product{}, translateTxError("add rating", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Product{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}

	return r.GetProduct(ctx, productID)
}

func (r *catalogRepository) loadInstances(ctx context.Context, productID int64) ([]domain.ProductInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, price_minor, absolute_discount_minor, percentage_discount,
		       sku, color, size, stock_quantity
		FROM product_instances
		WHERE product_id = $1
		ORDER BY id ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("load product instances: %w", err)
	}
	defer rows.Close()

	instances := make([]domain.ProductInstance, 0)
	for rows.Next() {
		var inst domain.ProductInstance
		if err := rows.Scan(
			&inst.ID, &inst.ProductID, &inst.PriceMinor, &inst.AbsoluteDiscountMinor,
			&inst.PercentageDiscount, &inst.SKU, &inst.Color, &inst.Size, &inst.StockQuantity,
		); err != nil {
			return nil, fmt.Errorf("scan product instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product instances: %w", err)
	}

	return instances, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
