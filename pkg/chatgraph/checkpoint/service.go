package checkpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSchemaSetupTimeout bounds the schema creation attempt during the
// first durable saver construction.
const DefaultSchemaSetupTimeout = 30 * time.Second

// Availability reports the outcome of the durable backend probe.
type Availability int

const (
	// AvailabilityUnknown means no saver has been requested yet.
	AvailabilityUnknown Availability = iota
	// AvailabilityAvailable means the durable backend is in use.
	AvailabilityAvailable
	// AvailabilityUnavailable means the service fell back to memory.
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ServiceConfig controls backend selection for a checkpoint Service.
type ServiceConfig struct {
	// DatabaseURL selects the Postgres backend when non-empty.
	DatabaseURL string

	// SQLitePath selects the SQLite backend when non-empty. It takes
	// precedence over DatabaseURL; the probe never picks SQLite on its own.
	SQLitePath string

	// Pool tunes the shared Postgres pool. ConnString is overridden by
	// DatabaseURL.
	Pool PoolConfig

	// SchemaSetupTimeout bounds schema creation during the probe.
	// Zero means DefaultSchemaSetupTimeout.
	SchemaSetupTimeout time.Duration
}

// Service owns backend selection for checkpoint persistence. The first
// NewSaver call probes the configured durable backend and the decision is
// sticky: a failed probe pins the in-memory fallback for the life of the
// service, so mid-process flapping cannot split a thread's history across
// backends.
//
// Construction never fails from the caller's point of view; when the
// durable backend is unreachable the service logs the cause and serves
// the memory fallback.
type Service struct {
	cfg    ServiceConfig
	logger *slog.Logger

	mu           sync.Mutex
	availability Availability
	base         Saver
	async        *AsyncSaver
}

// NewService creates a checkpoint service. No connection is attempted
// until the first NewSaver call.
func NewService(cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "checkpoint")),
	}
}

// Availability reports the probe outcome. It is AvailabilityUnknown until
// the first NewSaver call.
func (s *Service) Availability() Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability
}

// NewSaver returns the saver for this process, probing the backend on
// first use. With asyncMode the saver commits in the background; commit
// errors are logged rather than surfaced. Repeated calls return the same
// underlying saver so all threads share one history.
func (s *Service) NewSaver(ctx context.Context, asyncMode bool) Saver {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		s.base = s.probe(ctx)
	}
	if !asyncMode {
		return s.base
	}
	if s.async == nil {
		s.async = NewAsyncSaver(s.base, s.logger)
	}
	return s.async
}

// probe picks the backend. Called with s.mu held, exactly once.
func (s *Service) probe(ctx context.Context) Saver {
	if s.cfg.SQLitePath != "" {
		saver, err := NewSQLiteSaver(s.cfg.SQLitePath, s.logger)
		if err != nil {
			s.logger.Warn("sqlite checkpoint store unavailable, falling back to memory",
				slog.String("path", s.cfg.SQLitePath),
				slog.String("error", err.Error()))
			s.availability = AvailabilityUnavailable
			return NewMemorySaver()
		}
		s.availability = AvailabilityAvailable
		return saver
	}

	if s.cfg.DatabaseURL == "" {
		s.logger.Info("no database configured, using in-memory checkpoints")
		s.availability = AvailabilityUnavailable
		return NewMemorySaver()
	}

	poolCfg := s.cfg.Pool
	poolCfg.ConnString = s.cfg.DatabaseURL
	pool, err := SharedPool(ctx, poolCfg)
	if err != nil {
		s.logger.Warn("postgres checkpoint store unavailable, falling back to memory",
			slog.String("error", err.Error()))
		s.availability = AvailabilityUnavailable
		return NewMemorySaver()
	}

	// Pool construction is lazy; prove the server is reachable before
	// pinning the durable backend for the life of the process.
	pingCtx, cancelPing := context.WithTimeout(ctx, poolCfg.withDefaults().AcquireTimeout)
	err = pool.Ping(pingCtx)
	cancelPing()
	if err != nil {
		ResetSharedPool()
		s.logger.Warn("postgres checkpoint store unreachable, falling back to memory",
			slog.String("error", err.Error()))
		s.availability = AvailabilityUnavailable
		return NewMemorySaver()
	}

	saver := NewPostgresSaver(pool, s.logger)

	// A slow or failed schema setup does not disqualify the backend; the
	// tables may already exist and setup retries on the next process start.
	timeout := s.cfg.SchemaSetupTimeout
	if timeout <= 0 {
		timeout = DefaultSchemaSetupTimeout
	}
	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := saver.Setup(setupCtx); err != nil {
		s.logger.Warn("checkpoint schema setup incomplete",
			slog.String("error", err.Error()))
	}

	s.availability = AvailabilityAvailable
	return saver
}

// DeleteThread removes every checkpoint for threadKey. It is best effort:
// failures are logged and swallowed so cleanup can never fail a caller.
func (s *Service) DeleteThread(ctx context.Context, threadKey string) {
	saver := s.NewSaver(ctx, false)
	if err := saver.DeleteThread(ctx, threadKey); err != nil {
		s.logger.Warn("delete thread checkpoints failed",
			slog.String("thread_key", threadKey),
			slog.String("error", err.Error()))
	}
}

// Close releases the saver owned by the service. The shared Postgres pool
// is left open; it is process-wide and closed by ResetSharedPool.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.async != nil {
		err := s.async.Close()
		s.async = nil
		s.base = nil
		return err
	}
	if s.base != nil {
		err := s.base.Close()
		s.base = nil
		return err
	}
	return nil
}
