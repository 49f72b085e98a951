package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// Default pool sizing, matching the expectations of shared usage across
// concurrent workflow runs.
const (
	DefaultPoolMinConns    = 3
	DefaultPoolMaxConns    = 15
	DefaultAcquireTimeout  = 30 * time.Second
	DefaultPoolIdleTimeout = 10 * time.Minute
)

// PoolConfig describes the shared Postgres connection pool.
type PoolConfig struct {
	// ConnString is the Postgres connection string. When empty, no durable
	// backend is attempted and savers fall back to memory.
	ConnString string

	// MinConns and MaxConns bound how many connections the pool keeps open.
	MinConns int32
	MaxConns int32

	// AcquireTimeout bounds how long a lease request may wait.
	AcquireTimeout time.Duration

	// IdleTimeout is how long an unused connection is kept before eviction.
	IdleTimeout time.Duration
}

// withDefaults fills zero-value fields.
func (c PoolConfig) withDefaults() PoolConfig {
	if c.MinConns <= 0 {
		c.MinConns = DefaultPoolMinConns
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultPoolMaxConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultPoolIdleTimeout
	}
	return c
}

// PoolError wraps failures to create or lease from the shared pool.
// A failed lease does not invalidate the shared pool itself.
type PoolError struct {
	// Op is the operation that failed ("create", "acquire").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PoolError) Unwrap() error {
	return e.Err
}

// The process-wide shared pool. All durable savers lease from this single
// pool to avoid pool proliferation. First use constructs it; concurrent
// first-use callers are collapsed through a singleflight group so exactly
// one pool is ever built.
var (
	poolMu     sync.Mutex
	sharedPool *pgxpool.Pool
	poolGroup  singleflight.Group
)

// SharedPool returns the process-wide connection pool, creating it on first
// use. Every caller receives the same instance until ResetSharedPool.
func SharedPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolMu.Lock()
	if sharedPool != nil {
		p := sharedPool
		poolMu.Unlock()
		return p, nil
	}
	poolMu.Unlock()

	v, err, _ := poolGroup.Do("shared", func() (any, error) {
		poolMu.Lock()
		if sharedPool != nil {
			p := sharedPool
			poolMu.Unlock()
			return p, nil
		}
		poolMu.Unlock()

		pool, err := newPool(ctx, cfg.withDefaults())
		if err != nil {
			return nil, err
		}

		poolMu.Lock()
		sharedPool = pool
		poolMu.Unlock()

		slog.Debug("shared pool created",
			slog.Int("min_conns", int(cfg.withDefaults().MinConns)),
			slog.Int("max_conns", int(cfg.withDefaults().MaxConns)),
		)
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// newPool builds a pgx pool from the config.
func newPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, &PoolError{Op: "create", Err: err}
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConns = cfg.MaxConns
	pc.MaxConnIdleTime = cfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, &PoolError{Op: "create", Err: err}
	}
	return pool, nil
}

// AcquireLease leases one connection from the pool, bounded by the acquire
// timeout. The caller owns the connection until Release, on every exit path.
func AcquireLease(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) (*pgxpool.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	leaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pool.Acquire(leaseCtx)
	if err != nil {
		return nil, &PoolError{Op: "acquire", Err: err}
	}
	return conn, nil
}

// ResetSharedPool closes and clears the shared pool. Intended for controlled
// re-initialization (tests, reconnection after a prolonged outage); not part
// of normal operation.
func ResetSharedPool() {
	poolMu.Lock()
	defer poolMu.Unlock()

	if sharedPool != nil {
		sharedPool.Close()
		sharedPool = nil
		slog.Debug("shared pool reset")
	}
}
