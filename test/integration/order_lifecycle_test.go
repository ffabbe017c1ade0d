package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

// capturingPublisher собирает опубликованные события вместо отправки в брокер.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *capturingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.events...)
}

// OrderLifecycleTestSuite проверяет полный жизненный цикл заказа
// от каталога до публикации событий.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	orders    *order.Service
	catalog   *catalog.Service
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	publisher *capturingPublisher
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	suite.outbox = memory.NewOutboxRepository(suite.store)
	suite.timeline = memory.NewTimelineRepository(suite.store)
	suite.publisher = &capturingPublisher{}

	suite.orders = order.NewServiceWithoutMetrics(
		memory.NewOrderRepository(suite.store),
		suite.timeline,
		logger,
	)
	suite.catalog = catalog.NewService(memory.NewCatalogRepository(suite.store), logger)
}

// seedVariant наполняет каталог и возвращает ID варианта с заданным остатком.
func (suite *OrderLifecycleTestSuite) seedVariant(stock int32) int64 {
	ctx := context.Background()

	category, err := suite.catalog.CreateCategory(ctx, "Обувь")
	require.NoError(suite.T(), err)

	product, err := suite.catalog.CreateProduct(ctx, domain.Product{
		Name:       "Кроссовки",
		CategoryID: category.ID,
		Instances: []domain.ProductInstance{{
			PriceMinor:    990000,
			SKU:           "RUN-42",
			Size:          "42",
			StockQuantity: stock,
		}},
	})
	require.NoError(suite.T(), err)
	return product.Instances[0].ID
}

func (suite *OrderLifecycleTestSuite) TestFullOrderLifecycle() {
	ctx := context.Background()
	variantID := suite.seedVariant(10)

	created, reserved, err := suite.orders.Create(ctx, "user-1",
		domain.CustomerInfo{FirstName: "Анна", City: "Казань"},
		[]domain.OrderLineRequest{{ProductInstanceID: variantID, Quantity: 3}},
	)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCreated, created.Status)
	require.Len(suite.T(), reserved, 1)
	require.Equal(suite.T(), domain.FulfillmentFull, reserved[0].Fulfillment)

	updated, err := suite.orders.Update(ctx, created.ID, "Shipped", "курьер у подъезда")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), "Shipped", updated.Status)
	require.Equal(suite.T(), "курьер у подъезда", updated.Notes)

	events, err := suite.orders.Timeline(ctx, created.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), events, 2)
	require.Equal(suite.T(), domain.TimelineEventOrderCreated, events[0].Type)
	require.Equal(suite.T(), domain.TimelineEventOrderStatusChanged, events[1].Type)

	// Воркер публикует накопленные события outbox.
	worker := outbox.NewWorker(suite.outbox, suite.publisher)
	sent, err := worker.ProcessOnce(ctx)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 2, sent)

	published := suite.publisher.published()
	require.Len(suite.T(), published, 2)
	require.Equal(suite.T(), "order.created", published[0].EventType)
	require.Equal(suite.T(), "order.updated", published[1].EventType)

	var payload struct {
		OrderID int64  `json:"order_id"`
		UserID  string `json:"user_id"`
	}
	require.NoError(suite.T(), json.Unmarshal(published[0].Payload, &payload))
	require.Equal(suite.T(), created.ID, payload.OrderID)
	require.Equal(suite.T(), "user-1", payload.UserID)

	pending, err := suite.outbox.PullPending(ctx, 10)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), pending)
}

func (suite *OrderLifecycleTestSuite) TestPartialFulfillment() {
	ctx := context.Background()
	variantID := suite.seedVariant(2)

	created, reserved, err := suite.orders.Create(ctx, "user-1", domain.CustomerInfo{},
		[]domain.OrderLineRequest{
			{ProductInstanceID: variantID, Quantity: 5},
			{ProductInstanceID: 9999, Quantity: 1},
		},
	)
	require.NoError(suite.T(), err)

	require.Len(suite.T(), reserved, 2)
	require.Equal(suite.T(), domain.FulfillmentClamped, reserved[0].Fulfillment)
	require.Equal(suite.T(), int32(2), reserved[0].Quantity)
	require.Equal(suite.T(), domain.FulfillmentSkippedMissing, reserved[1].Fulfillment)

	require.Len(suite.T(), created.Records, 1)
	require.Equal(suite.T(), int32(2), created.Records[0].Quantity)
}

func (suite *OrderLifecycleTestSuite) TestEmptyOrderRejected() {
	ctx := context.Background()

	_, _, err := suite.orders.Create(ctx, "user-1", domain.CustomerInfo{},
		[]domain.OrderLineRequest{{ProductInstanceID: 4242, Quantity: 1}},
	)
	require.ErrorIs(suite.T(), err, domain.ErrEmptyOrder)

	orders, err := suite.orders.List(ctx, "user-1", 0)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), orders)

	pending, err := suite.outbox.PullPending(ctx, 10)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), pending)
}

func (suite *OrderLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	ctx := context.Background()
	const initialStock = int32(5)
	variantID := suite.seedVariant(initialStock)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var totalReserved int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, _, err := suite.orders.Create(ctx, "user-1", domain.CustomerInfo{},
				[]domain.OrderLineRequest{{ProductInstanceID: variantID, Quantity: 2}},
			)
			if err != nil {
				return
			}
			mu.Lock()
			for _, rec := range created.Records {
				totalReserved += rec.Quantity
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(suite.T(), initialStock, totalReserved,
		"суммарно зарезервировано не больше исходного остатка")
}

func (suite *OrderLifecycleTestSuite) TestRestockAllowsNewOrders() {
	ctx := context.Background()
	variantID := suite.seedVariant(1)

	_, _, err := suite.orders.Create(ctx, "user-1", domain.CustomerInfo{},
		[]domain.OrderLineRequest{{ProductInstanceID: variantID, Quantity: 1}},
	)
	require.NoError(suite.T(), err)

	// Остаток исчерпан: новый заказ по исчерпанному варианту отклоняется.
	_, _, err = suite.orders.Create(ctx, "user-2", domain.CustomerInfo{},
		[]domain.OrderLineRequest{{ProductInstanceID: variantID, Quantity: 1}},
	)
	require.ErrorIs(suite.T(), err, domain.ErrEmptyOrder)

	_, err = suite.catalog.Restock(ctx, variantID, 3)
	require.NoError(suite.T(), err)

	created, _, err := suite.orders.Create(ctx, "user-2", domain.CustomerInfo{},
		[]domain.OrderLineRequest{{ProductInstanceID: variantID, Quantity: 2}},
	)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(2), created.Records[0].Quantity)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
