package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля in-memory outbox.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	// seq задаёт порядок постановки; map не сохраняет порядок вставки.
	seq       int64
	createdAt time.Time
	updatedAt time.Time
}

// Store держит состояние in-memory реализации: каталог, заказы, outbox и
// timeline под одним мьютексом. Единый мьютекс нужен, чтобы резервирование
// остатков и сопутствующие записи (событие, timeline) фиксировались как одна
// неделимая операция, как это делает транзакция в PostgreSQL.
type Store struct {
	mu sync.Mutex

	categories map[int64]domain.Category
	products   map[int64]domain.Product
	instances  map[int64]domain.ProductInstance
	orders     map[int64]domain.Order
	outbox     map[string]*outboxRecord
	timeline   map[int64][]domain.TimelineEvent

	nextCategoryID int64
	nextProductID  int64
	nextInstanceID int64
	nextOrderID    int64
	outboxSeq      int64
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]domain.Product),
		instances:  make(map[int64]domain.ProductInstance),
		orders:     make(map[int64]domain.Order),
		outbox:     make(map[string]*outboxRecord),
		timeline:   make(map[int64][]domain.TimelineEvent),
	}
}

func copyOrder(order domain.Order) domain.Order {
	out := order
	out.Records = append([]domain.OrderRecord(nil), order.Records...)
	return out
}

func copyProduct(product domain.Product) domain.Product {
	out := product
	out.Instances = append([]domain.ProductInstance(nil), product.Instances...)
	return out
}
