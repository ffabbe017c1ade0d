package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateOrder атомарно резервирует остатки по позициям запроса и сохраняет
	// заказ с принятыми позициями. Событие order.created в outbox и запись
	// OrderCreated в timeline фиксируются той же транзакцией, что и заказ.
	// Возвращает сохранённый заказ и построчный результат резервирования
	// (включая пропущенные позиции). Если ни одна позиция не принята,
	// возвращает ErrEmptyOrder и ничего не меняет.
	CreateOrder(ctx context.Context, userID string, customer CustomerInfo, lines []OrderLineRequest) (Order, []ReservedLine, error)
	// GetOrder возвращает заказ по идентификатору или ErrOrderNotFound.
	GetOrder(ctx context.Context, id int64) (Order, error)
	// ListOrders возвращает заказы, опционально отфильтрованные по userID
	// (пустая строка — все заказы), новые первыми. limit <= 0 — без
	// ограничения.
	ListOrders(ctx context.Context, userID string, limit int) ([]Order, error)
	// UpdateOrder меняет только статус и заметки заказа; позиции и остатки
	// не затрагиваются. Пустой статус сохраняет текущий. Событие
	// order.updated и запись OrderStatusChanged (при смене статуса)
	// фиксируются той же транзакцией. Возвращает ErrOrderNotFound, если
	// заказа нет.
	UpdateOrder(ctx context.Context, id int64, status, notes string) (Order, error)
}

// ProductFilter задаёт фильтрацию и сортировку выборки каталога.
type ProductFilter struct {
	Category string
	// Name — подстрока имени без учёта регистра.
	Name         string
	SortByPrice  bool
	SortByRating bool
	SortAsc      bool
}

// CatalogRepository описывает требования к хранилищу каталога.
type CatalogRepository interface {
	CreateCategory(ctx context.Context, name string) (Category, error)
	// CreateProduct сохраняет товар; категория должна существовать.
	CreateProduct(ctx context.Context, product Product) (Product, error)
	// CreateInstance добавляет вариант к существующему товару.
	CreateInstance(ctx context.Context, instance ProductInstance) (ProductInstance, error)
	// GetProduct возвращает товар с вариантами или ErrProductNotFound.
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// AddStock увеличивает остаток варианта на qty (>0).
	AddStock(ctx context.Context, instanceID int64, qty int32) (ProductInstance, error)
	// AddRating пересчитывает средний рейтинг товара по формуле NextRating.
	AddRating(ctx context.Context, productID int64, value int) (Product, error)
}
