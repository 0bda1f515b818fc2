package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/config"
	"github.com/spec-kit/curator-desk/internal/repository"
	"github.com/spec-kit/curator-desk/internal/repository/memory"
	"github.com/spec-kit/curator-desk/internal/repository/sqlite"
)

// OpenStore connects the configured backend and returns its repositories
// with a function releasing the connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		return repository.NewPostgresStore(pg.PoolHandle()), pg.Close, nil
	case config.StoreDriverSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewStore(db), func() { _ = db.Close() }, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(nil).Repositories(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
