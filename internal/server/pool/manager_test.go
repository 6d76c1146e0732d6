package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/logging"
	"github.com/dmitrijs2005/chatkeeper/internal/server/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var completeConfig = secrets.StaticProvider{Config: secrets.DatabaseConfig{Descriptor: "postgres://u:p@h/db"}}

func newFakePool(t *testing.T) *Pool {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	return &Pool{DB: db}
}

type countingOpener struct {
	calls   atomic.Int32
	release chan struct{}
	results []error
	t       *testing.T
}

func (o *countingOpener) open(ctx context.Context, dsn string) (*Pool, error) {
	n := int(o.calls.Add(1))
	if o.release != nil {
		select {
		case <-o.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(o.results) && o.results[n-1] != nil {
		return nil, o.results[n-1]
	}
	return newFakePool(o.t), nil
}

func TestAcquire_ConcurrentCallersShareOneConstruction(t *testing.T) {
	opener := &countingOpener{release: make(chan struct{}), t: t}
	var converges atomic.Int32
	converge := func(context.Context, *sql.DB) error {
		converges.Add(1)
		return nil
	}
	m := NewManager(completeConfig, converge, logging.Discard(), WithOpener(opener.open))

	const callers = 32
	var (
		started sync.WaitGroup
		done    sync.WaitGroup
		pools   = make([]*Pool, callers)
		errs    = make([]error, callers)
	)
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			pools[i], errs[i] = m.Acquire(context.Background())
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(opener.release)
	done.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, pools[0], pools[i])
	}
	assert.EqualValues(t, 1, opener.calls.Load(), "pool must be constructed exactly once")
	assert.EqualValues(t, 1, converges.Load(), "schema must be converged exactly once")

	again, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, pools[0], again)
	assert.EqualValues(t, 1, opener.calls.Load())
}

func TestAcquire_FailureIsNotCached(t *testing.T) {
	boom := errors.New("connection refused")
	opener := &countingOpener{results: []error{boom}, t: t}
	m := NewManager(completeConfig, nil, logging.Discard(), WithOpener(opener.open))

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, boom)

	p, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.EqualValues(t, 2, opener.calls.Load())
}

func TestAcquire_ConfigurationError(t *testing.T) {
	opener := &countingOpener{t: t}
	m := NewManager(secrets.StaticProvider{}, nil, logging.Discard(), WithOpener(opener.open))

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Zero(t, opener.calls.Load())
}

type failingProvider struct{ err error }

func (f failingProvider) ResolveDatabaseConfig(context.Context) (secrets.DatabaseConfig, error) {
	return secrets.DatabaseConfig{}, f.err
}

func TestAcquire_ProviderErrorIsConfigurationError(t *testing.T) {
	boom := errors.New("vault sealed")
	m := NewManager(failingProvider{err: boom}, nil, logging.Discard(), WithOpener((&countingOpener{t: t}).open))

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.ErrorIs(t, err, boom)
}

func TestAcquire_ConvergeFailureIsMigrationError(t *testing.T) {
	opener := &countingOpener{t: t}
	var calls atomic.Int32
	converge := func(context.Context, *sql.DB) error {
		if calls.Add(1) == 1 {
			return errors.New("permission denied for table messages")
		}
		return nil
	}
	m := NewManager(completeConfig, converge, logging.Discard(), WithOpener(opener.open))

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, common.ErrMigration)

	p, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.EqualValues(t, 2, calls.Load())
}

func TestAcquire_WaiterDeadlineDoesNotAbortConstruction(t *testing.T) {
	opener := &countingOpener{release: make(chan struct{}), t: t}
	m := NewManager(completeConfig, nil, logging.Discard(), WithOpener(opener.open))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx)
	require.ErrorIs(t, err, common.ErrTimeout)

	close(opener.release)
	p, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.EqualValues(t, 1, opener.calls.Load())
}

func TestManager_Close(t *testing.T) {
	m := NewManager(completeConfig, nil, logging.Discard(), WithOpener((&countingOpener{t: t}).open))
	m.Close()

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Close()
	assert.Nil(t, m.cached())
}
