package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema for the three correlated tables, all keyed by thread_id.
// Setup is idempotent; a failed or timed-out setup may be retried on a
// later process start.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	sequence      BIGINT NOT NULL,
	next_node     TEXT NOT NULL DEFAULT '',
	prev_node_id  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (thread_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_seq
	ON checkpoints (thread_id, sequence);

CREATE TABLE IF NOT EXISTS checkpoint_blobs (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	state         BYTEA NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id)
);

CREATE TABLE IF NOT EXISTS checkpoint_writes (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	idx           INT NOT NULL,
	data          BYTEA NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id, idx)
);
`

// PostgresSaver persists checkpoints to Postgres through the shared pool.
// Commits for a single thread key are serialized so concurrent runs of the
// same conversation cannot interleave sequence assignment.
type PostgresSaver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	threads keyedMutex

	mu     sync.Mutex
	closed bool
}

// NewPostgresSaver creates a Postgres saver on top of an existing pool.
// The saver does not own the pool; Close does not close it.
func NewPostgresSaver(pool *pgxpool.Pool, logger *slog.Logger) *PostgresSaver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSaver{
		pool:   pool,
		logger: logger.With(slog.String("saver", "postgres")),
	}
}

// Setup creates the checkpoint schema. Safe to call repeatedly.
// Callers bound it with a timeout; on timeout the saver remains usable and
// setup can be retried on a later start.
func (s *PostgresSaver) Setup(ctx context.Context) error {
	conn, err := AcquireLease(ctx, s.pool, 0)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create checkpoint schema: %w", err)
	}
	return nil
}

// Put implements Saver.
func (s *PostgresSaver) Put(ctx context.Context, cp *Checkpoint) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(cp.ThreadKey)
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM checkpoints WHERE thread_id = $1`,
		cp.ThreadKey,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO checkpoints (thread_id, checkpoint_id, node_id, sequence, next_node, prev_node_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cp.ThreadKey, cp.ID, cp.NodeID, seq, cp.NextNode, cp.PrevNodeID, cp.Timestamp,
	); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO checkpoint_blobs (thread_id, checkpoint_id, state) VALUES ($1, $2, $3)`,
		cp.ThreadKey, cp.ID, []byte(cp.State),
	); err != nil {
		return fmt.Errorf("insert checkpoint blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	cp.Sequence = seq
	return nil
}

// Latest implements Saver.
func (s *PostgresSaver) Latest(ctx context.Context, threadKey string) (*Checkpoint, error) {
	if s.isClosed() {
		return nil, ErrSaverClosed
	}

	row := s.pool.QueryRow(ctx,
		`SELECT c.checkpoint_id, c.node_id, c.sequence, c.next_node, c.prev_node_id, c.created_at, b.state
		 FROM checkpoints c
		 JOIN checkpoint_blobs b
		   ON b.thread_id = c.thread_id AND b.checkpoint_id = c.checkpoint_id
		 WHERE c.thread_id = $1
		 ORDER BY c.sequence DESC
		 LIMIT 1`,
		threadKey,
	)

	cp := Checkpoint{Version: Version, ThreadKey: threadKey, Attempt: 1}
	var state []byte
	err := row.Scan(&cp.ID, &cp.NodeID, &cp.Sequence, &cp.NextNode, &cp.PrevNodeID, &cp.Timestamp, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	cp.State = state
	return &cp, nil
}

// List implements Saver.
func (s *PostgresSaver) List(ctx context.Context, threadKey string) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrSaverClosed
	}

	rows, err := s.pool.Query(ctx,
		`SELECT c.checkpoint_id, c.node_id, c.sequence, c.created_at, LENGTH(b.state)
		 FROM checkpoints c
		 JOIN checkpoint_blobs b
		   ON b.thread_id = c.thread_id AND b.checkpoint_id = c.checkpoint_id
		 WHERE c.thread_id = $1
		 ORDER BY c.sequence`,
		threadKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := make([]Info, 0)
	for rows.Next() {
		info := Info{ThreadKey: threadKey}
		if err := rows.Scan(&info.ID, &info.NodeID, &info.Sequence, &info.Timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// PutWrites implements Saver.
func (s *PostgresSaver) PutWrites(ctx context.Context, threadKey, checkpointID string, writes []PendingWrite) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(threadKey)
	defer unlock()

	for _, w := range writes {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO checkpoint_writes (thread_id, checkpoint_id, node_id, idx, data)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (thread_id, checkpoint_id, idx) DO UPDATE SET
				node_id = EXCLUDED.node_id,
				data = EXCLUDED.data`,
			threadKey, checkpointID, w.NodeID, w.Index, w.Data,
		); err != nil {
			return fmt.Errorf("insert pending write: %w", err)
		}
	}
	return nil
}

// DeleteThread implements Saver. It executes three scoped deletes, one per
// table, each independently idempotent.
func (s *PostgresSaver) DeleteThread(ctx context.Context, threadKey string) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(threadKey)
	defer unlock()

	for _, table := range []string{"checkpoint_writes", "checkpoint_blobs", "checkpoints"} {
		if _, err := s.pool.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE thread_id = $1`, table),
			threadKey,
		); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// Close implements Saver. The shared pool is left open for other savers.
func (s *PostgresSaver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *PostgresSaver) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// keyedMutex provides per-key mutual exclusion. Lock returns the unlock
// function for the key's mutex. Mutexes are retained for the life of the
// saver; the key space is bounded by active conversations.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
