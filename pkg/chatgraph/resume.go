package chatgraph

import (
	"encoding/json"
	"fmt"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph/checkpoint"
)

// Resume continues execution from the last checkpoint for a thread.
// It loads the thread's latest checkpoint and starts execution from the
// next node. Checkpoints committed by the resumed run continue the
// thread's sequence.
//
// Example:
//
//	// Previous run crashed after the generate node
//	// Resume continues from the dispatch node with generate's state
//	result, err := compiled.Resume(ctx, saver, "whatsapp:15551234567")
func (cg *CompiledGraph[S]) Resume(ctx Context, saver checkpoint.Saver, threadKey string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}
	if threadKey == "" {
		return zero, ErrThreadKeyRequired
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := saver.Latest(ctx, threadKey)
	if err != nil {
		if err == checkpoint.ErrNotFound {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadKey)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	state, err := cg.restoreState(cp, &cfg)
	if err != nil {
		return zero, err
	}

	// Determine start node
	startNode := cp.NextNode
	if cfg.replayNode {
		// Re-execute the checkpointed node
		startNode = cp.NodeID
	}
	if startNode == "" {
		startNode = cp.NodeID
	}
	if startNode != END && !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runCfg := defaultRunConfig()
	runCfg.saver = saver
	runCfg.threadKey = threadKey

	return cg.runFrom(ctx, state, startNode, &runCfg)
}

// ResumeFrom restarts execution at a specific node using the thread's
// latest checkpointed state. Use it to retry a failed node after the
// underlying fault is fixed.
//
// Example:
//
//	// Retry dispatch after the send channel recovers
//	result, err := compiled.ResumeFrom(ctx, saver, "whatsapp:15551234567", "dispatch")
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, saver checkpoint.Saver, threadKey, nodeID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}
	if threadKey == "" {
		return zero, ErrThreadKeyRequired
	}
	if nodeID != END && !cg.HasNode(nodeID) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, nodeID)
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := saver.Latest(ctx, threadKey)
	if err != nil {
		if err == checkpoint.ErrNotFound {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadKey)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	state, err := cg.restoreState(cp, &cfg)
	if err != nil {
		return zero, err
	}

	runCfg := defaultRunConfig()
	runCfg.saver = saver
	runCfg.threadKey = threadKey

	return cg.runFrom(ctx, state, nodeID, &runCfg)
}

// restoreState deserializes and post-processes a checkpoint's state.
func (cg *CompiledGraph[S]) restoreState(cp *checkpoint.Checkpoint, cfg *resumeConfig) (S, error) {
	var zero S

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		modified := cfg.stateOverride(state)
		if typed, ok := modified.(S); ok {
			state = typed
		}
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	return state, nil
}
