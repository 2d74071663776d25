// Package postgres implements the memory engine's repository interfaces
// against Postgres+pgvector. It is the only layer in the system with
// knowledge of SQL, table shapes, or vector literal encoding.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig bundles the connection-pool sizing a caller supplies
// (spec §6's DB_POOL_MIN_SIZE/DB_POOL_MAX_SIZE knobs).
type PoolConfig struct {
	DatabaseURL string
	MinConns    int32
	MaxConns    int32
}

// OpenPool parses dsn, applies the pool sizing, and verifies connectivity
// with a ping before handing the pool back to the composition root.
func OpenPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
