package checkpoint

import (
	"context"
	"sync"
)

// MemorySaver is an in-memory checkpoint saver. It is the fallback backend
// when no durable store is configured or reachable; data is lost when the
// process exits.
type MemorySaver struct {
	mu     sync.RWMutex
	data   map[string][]*Checkpoint             // threadKey -> checkpoints ordered by sequence
	writes map[string]map[string][]PendingWrite // threadKey -> checkpointID -> writes
	closed bool
}

// NewMemorySaver creates a new in-memory checkpoint saver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{
		data:   make(map[string][]*Checkpoint),
		writes: make(map[string]map[string][]PendingWrite),
	}
}

// Put implements Saver.
func (m *MemorySaver) Put(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSaverClosed
	}

	seq := 1
	if existing := m.data[cp.ThreadKey]; len(existing) > 0 {
		seq = existing[len(existing)-1].Sequence + 1
	}

	stored := *cp
	stored.Sequence = seq
	stored.State = append([]byte(nil), cp.State...)
	m.data[cp.ThreadKey] = append(m.data[cp.ThreadKey], &stored)

	cp.Sequence = seq
	return nil
}

// Latest implements Saver.
func (m *MemorySaver) Latest(_ context.Context, threadKey string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrSaverClosed
	}

	cps := m.data[threadKey]
	if len(cps) == 0 {
		return nil, ErrNotFound
	}

	// Return a copy to prevent modification
	latest := *cps[len(cps)-1]
	latest.State = append([]byte(nil), latest.State...)
	return &latest, nil
}

// List implements Saver.
func (m *MemorySaver) List(_ context.Context, threadKey string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrSaverClosed
	}

	cps := m.data[threadKey]
	infos := make([]Info, 0, len(cps))
	for _, cp := range cps {
		infos = append(infos, Info{
			ThreadKey: threadKey,
			ID:        cp.ID,
			NodeID:    cp.NodeID,
			Sequence:  cp.Sequence,
			Timestamp: cp.Timestamp,
			Size:      int64(len(cp.State)),
		})
	}
	return infos, nil
}

// PutWrites implements Saver.
func (m *MemorySaver) PutWrites(_ context.Context, threadKey, checkpointID string, writes []PendingWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSaverClosed
	}

	if m.writes[threadKey] == nil {
		m.writes[threadKey] = make(map[string][]PendingWrite)
	}

	copied := make([]PendingWrite, len(writes))
	for i, w := range writes {
		copied[i] = PendingWrite{
			NodeID: w.NodeID,
			Index:  w.Index,
			Data:   append([]byte(nil), w.Data...),
		}
	}
	m.writes[threadKey][checkpointID] = copied
	return nil
}

// DeleteThread implements Saver.
func (m *MemorySaver) DeleteThread(_ context.Context, threadKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSaverClosed
	}

	delete(m.data, threadKey)
	delete(m.writes, threadKey)
	return nil
}

// Close implements Saver.
func (m *MemorySaver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	m.writes = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
// Useful for testing.
func (m *MemorySaver) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, cps := range m.data {
		count += len(cps)
	}
	return count
}
