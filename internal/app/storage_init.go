package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/storage/postgres"
)

// initRuntimeDependencies собирает зависимости по выбранному storage driver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return NewDependencies(logger), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.StorageDriver)
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres storage driver requires %s", envPostgresDSN)
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres storage: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	deps := NewDependencies(logger)
	deps.Products = postgres.NewProductRepository(store)
	deps.Orders = postgres.NewOrderRepository(store)
	deps.OutboxRepo = postgres.NewOutboxRepository(store)
	deps.IdemRepo = postgres.NewIdempotencyRepository(store)
	deps.StorePing = store.Ping
	deps.closeStores = store.Close

	logger.Info("using postgres storage")
	return deps, nil
}
