package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of conversation state.
// It contains all information needed to restore a thread's history
// and to resume an interrupted run.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	ThreadKey string    `json:"thread_key"`
	ID        string    `json:"id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Execution context
	Attempt    int    `json:"attempt"`
	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint for the given thread.
// State must already be JSON-serialized. The sequence number is assigned
// by the saver at Put time, continuing the thread's existing sequence.
func New(threadKey, nodeID string, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ThreadKey: threadKey,
		ID:        uuid.New().String(),
		NodeID:    nodeID,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Attempt:   1,
	}
}

// WithAttempt sets the attempt number for retry tracking.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// PendingWrite records the intent to execute a node before its checkpoint
// commits. A pending write without a matching checkpoint row indicates a
// run that was interrupted mid-node.
type PendingWrite struct {
	NodeID string `json:"node_id"`
	Index  int    `json:"index"`
	Data   []byte `json:"data"`
}
