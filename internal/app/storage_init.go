package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/health"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
	"github.com/vladislavdragonenkov/crm/internal/storage/postgres"
)

// Resetter очищает все данные хранилища.
type Resetter interface {
	Reset(ctx context.Context) error
}

type storageDependencies struct {
	repos   domain.Repositories
	uow     domain.UnitOfWork
	checker health.Checker
	reset   Resetter
	closeFn func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storageDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.WithField("driver", StorageDriverMemory).Info("storage initialized")
		return &storageDependencies{
			repos:   store.Repositories(),
			uow:     store,
			checker: health.NewPingChecker("storage", store),
			reset:   store,
			closeFn: store.Close,
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithField("version", state.Version).Info("postgres migrations applied")
			}
		}
		logger.WithField("driver", StorageDriverPostgres).Info("storage initialized")
		return &storageDependencies{
			repos:   store.Repositories(),
			uow:     store,
			checker: health.NewPingChecker("storage", store),
			reset:   store,
			closeFn: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
