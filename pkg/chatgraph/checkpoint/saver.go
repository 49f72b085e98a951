// Package checkpoint provides durable conversation-state persistence keyed
// by thread, with a pooled Postgres backend, a single-process SQLite backend,
// and an in-memory fallback.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Saver persists checkpoints for conversation threads.
// Implementations must be safe for concurrent use and must apply commits
// for a single thread key in the order they are received.
type Saver interface {
	// Put commits a checkpoint for cp.ThreadKey. The saver assigns
	// cp.Sequence, continuing the thread's existing sequence.
	Put(ctx context.Context, cp *Checkpoint) error

	// Latest retrieves the most recent checkpoint for a thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Latest(ctx context.Context, threadKey string) (*Checkpoint, error)

	// List returns metadata for all checkpoints of a thread, ordered by
	// sequence. Returns an empty slice (not an error) for unknown threads.
	List(ctx context.Context, threadKey string) ([]Info, error)

	// PutWrites records pending writes for a checkpoint that has not yet
	// committed. Idempotent per (threadKey, checkpointID, index).
	PutWrites(ctx context.Context, threadKey, checkpointID string, writes []PendingWrite) error

	// DeleteThread removes all persisted data for a thread: pending writes,
	// state blobs, and the checkpoint index. Each delete is independently
	// idempotent; deleting an absent thread is a no-op.
	DeleteThread(ctx context.Context, threadKey string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without loading full state.
type Info struct {
	ThreadKey string
	ID        string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrSaverClosed indicates the saver has been closed.
	ErrSaverClosed = errors.New("checkpoint saver closed")
)
