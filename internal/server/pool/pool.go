// Package pool owns the process-wide database connection pool. The pool is
// built lazily on first use, exactly once, and the schema is converged before
// anyone but the convergence step sees it.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxConns       = 20
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 3 * time.Second
)

// Pool is the shared set of connections. DB is backed by a pgxpool.Pool, so
// database/sql callers and the pgx pool share the same bounded connections.
type Pool struct {
	DB  *sql.DB
	pgx *pgxpool.Pool
}

// Ping verifies that the store is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// Close releases all connections. Only called at process exit.
func (p *Pool) Close() {
	_ = p.DB.Close()
	if p.pgx != nil {
		p.pgx.Close()
	}
}

// openPostgres parses dsn, builds a pgx pool, checks it with a ping and
// exposes it as *sql.DB.
func openPostgres(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %w", common.ErrConfiguration, err)
	}
	cfg.MaxConns = defaultMaxConns
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pgxPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pgxPool.Ping(pingCtx); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Pool{DB: stdlib.OpenDBFromPool(pgxPool), pgx: pgxPool}, nil
}
