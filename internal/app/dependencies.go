package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// Dependencies содержит хранилища приложения, собранные под выбранный драйвер.
type Dependencies struct {
	Orders      domain.OrderRepository
	Catalog     domain.CatalogRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository
	Logger      *log.Entry

	// pg не nil только для драйвера postgres; нужен для Ping и Close.
	pg *postgres.Store
}

// NewDependencies создаёт хранилища по конфигурации. Для postgres при
// включённом PostgresAutoMigrate схема приводится к актуальной версии.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		return &Dependencies{
			Orders:      memory.NewOrderRepository(store),
			Catalog:     memory.NewCatalogRepository(store),
			Outbox:      memory.NewOutboxRepository(store),
			Timeline:    memory.NewTimelineRepository(store),
			Idempotency: memory.NewIdempotencyRepository(),
			Logger:      logger,
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("dependencies: открытие postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("dependencies: миграции: %w", err)
			}
		}
		return &Dependencies{
			Orders:      postgres.NewOrderRepository(store),
			Catalog:     postgres.NewCatalogRepository(store),
			Outbox:      postgres.NewOutboxRepository(store),
			Timeline:    postgres.NewTimelineRepository(store),
			Idempotency: postgres.NewIdempotencyRepository(store),
			Logger:      logger,
			pg:          store,
		}, nil

	default:
		return nil, fmt.Errorf("dependencies: неизвестный драйвер хранилища %q", cfg.StorageDriver)
	}
}

// Ping проверяет доступность хранилища; для памяти всегда успешен.
func (d *Dependencies) Ping(ctx context.Context) error {
	if d.pg == nil {
		return nil
	}
	return d.pg.Ping(ctx)
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.pg == nil {
		return nil
	}
	return d.pg.Close()
}
