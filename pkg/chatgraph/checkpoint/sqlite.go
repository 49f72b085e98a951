package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	sequence      INTEGER NOT NULL,
	next_node     TEXT NOT NULL DEFAULT '',
	prev_node_id  TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_seq
	ON checkpoints (thread_id, sequence);

CREATE TABLE IF NOT EXISTS checkpoint_blobs (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	state         BLOB NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id)
);

CREATE TABLE IF NOT EXISTS checkpoint_writes (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	node_id       TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	data          BLOB NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id, idx)
);
`

// SQLiteSaver persists checkpoints to a local SQLite database. It is a
// durable option for single-process deployments and is only used when
// explicitly configured; the availability probe never falls back to it.
type SQLiteSaver struct {
	db     *sql.DB
	logger *slog.Logger

	threads keyedMutex

	mu     sync.Mutex
	closed bool
}

// NewSQLiteSaver opens (or creates) the database at path and ensures the
// checkpoint schema exists. Use ":memory:" for tests.
func NewSQLiteSaver(path string, logger *slog.Logger) (*SQLiteSaver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode allows readers to proceed while a commit is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint schema: %w", err)
	}

	return &SQLiteSaver{
		db:     db,
		logger: logger.With(slog.String("saver", "sqlite")),
	}, nil
}

// Put implements Saver.
func (s *SQLiteSaver) Put(ctx context.Context, cp *Checkpoint) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(cp.ThreadKey)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM checkpoints WHERE thread_id = ?`,
		cp.ThreadKey,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, checkpoint_id, node_id, sequence, next_node, prev_node_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.ThreadKey, cp.ID, cp.NodeID, seq, cp.NextNode, cp.PrevNodeID,
		cp.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoint_blobs (thread_id, checkpoint_id, state) VALUES (?, ?, ?)`,
		cp.ThreadKey, cp.ID, []byte(cp.State),
	); err != nil {
		return fmt.Errorf("insert checkpoint blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	cp.Sequence = seq
	return nil
}

// Latest implements Saver.
func (s *SQLiteSaver) Latest(ctx context.Context, threadKey string) (*Checkpoint, error) {
	if s.isClosed() {
		return nil, ErrSaverClosed
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT c.checkpoint_id, c.node_id, c.sequence, c.next_node, c.prev_node_id, c.created_at, b.state
		 FROM checkpoints c
		 JOIN checkpoint_blobs b
		   ON b.thread_id = c.thread_id AND b.checkpoint_id = c.checkpoint_id
		 WHERE c.thread_id = ?
		 ORDER BY c.sequence DESC
		 LIMIT 1`,
		threadKey,
	)

	cp := Checkpoint{Version: Version, ThreadKey: threadKey, Attempt: 1}
	var ts string
	var state []byte
	err := row.Scan(&cp.ID, &cp.NodeID, &cp.Sequence, &cp.NextNode, &cp.PrevNodeID, &ts, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	if cp.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	cp.State = state
	return &cp, nil
}

// List implements Saver.
func (s *SQLiteSaver) List(ctx context.Context, threadKey string) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrSaverClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.checkpoint_id, c.node_id, c.sequence, c.created_at, LENGTH(b.state)
		 FROM checkpoints c
		 JOIN checkpoint_blobs b
		   ON b.thread_id = c.thread_id AND b.checkpoint_id = c.checkpoint_id
		 WHERE c.thread_id = ?
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
		var ts string
		if err := rows.Scan(&info.ID, &info.NodeID, &info.Sequence, &ts, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// PutWrites implements Saver.
func (s *SQLiteSaver) PutWrites(ctx context.Context, threadKey, checkpointID string, writes []PendingWrite) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(threadKey)
	defer unlock()

	for _, w := range writes {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO checkpoint_writes (thread_id, checkpoint_id, node_id, idx, data)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (thread_id, checkpoint_id, idx) DO UPDATE SET
				node_id = excluded.node_id,
				data = excluded.data`,
			threadKey, checkpointID, w.NodeID, w.Index, w.Data,
		); err != nil {
			return fmt.Errorf("insert pending write: %w", err)
		}
	}
	return nil
}

// DeleteThread implements Saver.
func (s *SQLiteSaver) DeleteThread(ctx context.Context, threadKey string) error {
	if s.isClosed() {
		return ErrSaverClosed
	}

	unlock := s.threads.Lock(threadKey)
	defer unlock()

	for _, table := range []string{"checkpoint_writes", "checkpoint_blobs", "checkpoints"} {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE thread_id = ?`, table),
			threadKey,
		); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// Close implements Saver. The saver owns its database handle.
func (s *SQLiteSaver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteSaver) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
