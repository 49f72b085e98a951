package checkpoint

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const asyncQueueDepth = 256

// commitJob is a unit of background work. A job with a non-nil barrier
// carries no checkpoint; the worker closes the barrier once every job
// enqueued before it has been committed.
type commitJob struct {
	cp      *Checkpoint
	writes  []PendingWrite
	ckptID  string
	thread  string
	barrier chan struct{}
}

// AsyncSaver decouples checkpoint commits from graph execution. Put and
// PutWrites enqueue work for a single background worker, which preserves
// enqueue order and therefore per-thread commit order. Read operations
// flush the queue first so callers never observe a stale head.
//
// Commit failures in the background are logged, not surfaced; async mode
// trades durability guarantees for latency.
type AsyncSaver struct {
	inner  Saver
	logger *slog.Logger

	queue chan commitJob
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewAsyncSaver wraps inner with a background commit queue. The returned
// saver owns inner and closes it on Close.
func NewAsyncSaver(inner Saver, logger *slog.Logger) *AsyncSaver {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSaver{
		inner:  inner,
		logger: logger.With(slog.String("saver", "async")),
		queue:  make(chan commitJob, asyncQueueDepth),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *AsyncSaver) worker() {
	defer close(s.done)
	for job := range s.queue {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}

		// Commits use a fresh context; the run that enqueued the job may
		// already have returned.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		switch {
		case job.cp != nil:
			err = s.inner.Put(ctx, job.cp)
		default:
			err = s.inner.PutWrites(ctx, job.thread, job.ckptID, job.writes)
		}
		cancel()

		if err != nil {
			s.logger.Error("background checkpoint commit failed",
				slog.String("thread_key", job.thread),
				slog.String("error", err.Error()))
		}
	}
}

// Put implements Saver. The checkpoint is committed in the background;
// the call only fails if the saver is closed.
func (s *AsyncSaver) Put(ctx context.Context, cp *Checkpoint) error {
	return s.enqueue(commitJob{cp: cp, thread: cp.ThreadKey})
}

// PutWrites implements Saver.
func (s *AsyncSaver) PutWrites(ctx context.Context, threadKey, checkpointID string, writes []PendingWrite) error {
	return s.enqueue(commitJob{writes: writes, ckptID: checkpointID, thread: threadKey})
}

func (s *AsyncSaver) enqueue(job commitJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSaverClosed
	}
	s.queue <- job
	return nil
}

// Flush blocks until every commit enqueued before the call has been
// attempted.
func (s *AsyncSaver) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := s.enqueue(commitJob{barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest implements Saver. Pending commits are flushed first.
func (s *AsyncSaver) Latest(ctx context.Context, threadKey string) (*Checkpoint, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return s.inner.Latest(ctx, threadKey)
}

// List implements Saver. Pending commits are flushed first.
func (s *AsyncSaver) List(ctx context.Context, threadKey string) ([]Info, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return s.inner.List(ctx, threadKey)
}

// DeleteThread implements Saver. Pending commits are flushed first so a
// delete cannot race a commit for the same thread.
func (s *AsyncSaver) DeleteThread(ctx context.Context, threadKey string) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	return s.inner.DeleteThread(ctx, threadKey)
}

// Close drains the queue, stops the worker, and closes the wrapped saver.
func (s *AsyncSaver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.inner.Close()
}
