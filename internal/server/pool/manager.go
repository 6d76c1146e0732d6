package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/logging"
	"github.com/dmitrijs2005/chatkeeper/internal/server/secrets"
	"golang.org/x/sync/singleflight"
)

const (
	constructionKey            = "pool"
	defaultConstructionTimeout = 2 * time.Minute
)

// ConvergeFunc brings the schema to its target shape on a freshly built pool.
type ConvergeFunc func(ctx context.Context, db *sql.DB) error

// OpenFunc builds a pool for dsn.
type OpenFunc func(ctx context.Context, dsn string) (*Pool, error)

// Manager hands out the single shared Pool.
//
// Concurrent first callers share one in-flight construction. A successful
// construction is cached for the life of the process; a failed one is
// reported to every waiter and forgotten, so the next call tries again.
type Manager struct {
	provider secrets.Provider
	converge ConvergeFunc
	open     OpenFunc
	logger   logging.Logger

	constructionTimeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	pool  *Pool
}

type Option func(*Manager)

// WithOpener replaces the pgx-backed opener.
func WithOpener(open OpenFunc) Option {
	return func(m *Manager) { m.open = open }
}

// WithConstructionTimeout bounds a single construction attempt, including
// schema convergence.
func WithConstructionTimeout(d time.Duration) Option {
	return func(m *Manager) { m.constructionTimeout = d }
}

func NewManager(provider secrets.Provider, converge ConvergeFunc, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider:            provider,
		converge:            converge,
		open:                openPostgres,
		logger:              logger.With("module", "pool"),
		constructionTimeout: defaultConstructionTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire returns the shared pool, building it on first use.
//
// Construction is detached from the caller's cancellation. Each caller
// stops waiting when its own ctx is done.
func (m *Manager) Acquire(ctx context.Context) (*Pool, error) {
	if p := m.cached(); p != nil {
		return p, nil
	}

	ch := m.group.DoChan(constructionKey, func() (any, error) {
		if p := m.cached(); p != nil {
			return p, nil
		}

		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.constructionTimeout)
		defer cancel()

		p, err := m.build(buildCtx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.pool = p
		m.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, dbx.Classify(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pool), nil
	}
}

// Close closes the pool if it was ever built.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}

func (m *Manager) cached() *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

func (m *Manager) build(ctx context.Context) (*Pool, error) {
	cfg, err := m.provider.ResolveDatabaseConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve database config: %w", common.ErrConfiguration, err)
	}

	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "opening connection pool")
	p, err := m.open(ctx, dsn)
	if err != nil {
		return nil, dbx.Classify(err)
	}

	if m.converge != nil {
		if err := m.converge(ctx, p.DB); err != nil {
			p.Close()
			if errors.Is(err, common.ErrMigration) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", common.ErrMigration, err)
		}
	}

	m.logger.Info(ctx, "connection pool ready")
	return p, nil
}
