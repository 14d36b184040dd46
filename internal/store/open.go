package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Open dispatches on the configured driver name.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres", "pgx", "":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
