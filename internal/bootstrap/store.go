package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OpenStore connects the configured store. The returned checks hold the
// store's health check, if any; closeFn releases its resources.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.Store, map[string]Pinger, func(), error) {
	checks := make(map[string]Pinger)
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), checks, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := repository.NewPGStore(pool)
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("database schema applied")
	}
	checks["postgres"] = store
	return store, checks, pool.Close, nil
}
