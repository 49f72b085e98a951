package chatgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph/checkpoint"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the graph with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the state at the point of failure (useful for debugging).
//
// Execution flow:
//  1. Start at the entry point node
//  2. Check for cancellation
//  3. Execute the current node
//  4. Determine the next node (via simple or conditional edge)
//  5. Commit a checkpoint when checkpointing is enabled
//  6. Repeat until END is reached or an error occurs
//
// A routing error aborts the step before its checkpoint is committed, so a
// message the graph cannot route leaves the thread's history unchanged.
//
// Example:
//
//	ctx := chatgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState,
//	    chatgraph.WithCheckpointing(saver, threadKey))
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.saver != nil && cfg.threadKey == "" {
		return state, ErrThreadKeyRequired
	}

	runID := ctx.RunID()
	startTime := time.Now()

	observability.LogRunStart(cfg.logger, runID, cfg.threadKey)

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "chatgraph", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var nodeCount int
	result, nodeCount, runErr = cg.runFromWithObservability(execCtx, ctx, state, cg.entryPoint, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	cfg.metrics.RecordGraphRun(ctx, runErr == nil, duration)

	if runErr != nil {
		lastNode := ""
		switch e := runErr.(type) {
		case *NodeError:
			lastNode = e.NodeID
		case *MaxIterationsError:
			lastNode = e.LastNodeID
		case *CancellationError:
			lastNode = e.NodeID
		case *RouterError:
			lastNode = e.FromNode
		}
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, lastNode)
	} else {
		observability.LogRunComplete(cfg.logger, runID, durationMs, nodeCount)
	}

	return result, runErr
}

// runFrom executes the graph starting from a specific node.
// This is used by Resume() - does not include run-level observability.
func (cg *CompiledGraph[S]) runFrom(ctx Context, state S, startNode string, cfg *runConfig) (S, error) {
	result, _, err := cg.runFromWithObservability(ctx, ctx, state, startNode, cfg)
	return result, err
}

// runFromWithObservability executes the graph with full observability.
// tracingCtx carries span context; gCtx is the chatgraph Context.
// Returns the final state, node count, and any error.
func (cg *CompiledGraph[S]) runFromWithObservability(tracingCtx context.Context, gCtx Context, state S, startNode string, cfg *runConfig) (S, int, error) {
	current := startNode
	iterations := 0
	prevNode := ""
	nodeCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, nodeCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		// Check for cancellation before executing node
		select {
		case <-gCtx.Done():
			return state, nodeCount, &CancellationError{
				NodeID:       current,
				State:        state,
				Cause:        gCtx.Err(),
				WasExecuting: false,
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		// Record the step intent before executing, so a crash mid-node
		// leaves evidence of what was in flight. The intent shares its
		// checkpoint ID with the commit that follows.
		var step *checkpoint.Checkpoint
		if cfg.saver != nil {
			var err error
			step, err = cg.recordStepIntent(gCtx, cfg, current)
			if err != nil {
				return state, nodeCount, err
			}
		}

		nodeStart := time.Now()

		var nodeErr error
		state, nodeErr = cg.executeNode(gCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		nodeDurationMs := float64(nodeDuration.Milliseconds())

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, nodeDurationMs)
		nodeCount++

		// Determine next node. Routing errors abort before the checkpoint
		// commit below.
		next, err := cg.nextNode(gCtx, state, current)
		if err != nil {
			return state, nodeCount, err
		}

		// Checkpoint after successful node execution
		if cfg.saver != nil {
			if err := cg.saveCheckpoint(gCtx, cfg, step, current, prevNode, state, next); err != nil {
				return state, nodeCount, err
			}
		}

		prevNode = current
		current = next
	}

	return state, nodeCount, nil
}

// recordStepIntent creates the checkpoint for the step about to execute and
// persists a pending write marking it in flight. The checkpoint itself is
// committed by saveCheckpoint after the node and its routing succeed.
func (cg *CompiledGraph[S]) recordStepIntent(ctx Context, cfg *runConfig, nodeID string) (*checkpoint.Checkpoint, error) {
	step := checkpoint.New(cfg.threadKey, nodeID, nil, "")
	if ec, ok := ctx.(*executionContext); ok {
		step = step.WithAttempt(ec.attempt)
	}

	intent, err := json.Marshal(map[string]string{"node": nodeID, "status": "executing"})
	if err != nil {
		intent = []byte(`{}`)
	}
	writes := []checkpoint.PendingWrite{{NodeID: nodeID, Index: 0, Data: intent}}

	if err := cfg.saver.PutWrites(ctx, cfg.threadKey, step.ID, writes); err != nil {
		if cfg.checkpointFailureFatal {
			return nil, &CheckpointError{NodeID: nodeID, Op: "writes", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "writes", err)
	}
	return step, nil
}

// saveCheckpoint commits the state after node execution. step carries the
// checkpoint ID announced by recordStepIntent.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig, step *checkpoint.Checkpoint, nodeID, prevNodeID string, state S, nextNode string) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{
				NodeID: nodeID,
				Op:     "serialize",
				Err:    err,
			}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "serialize", err)
		return nil
	}

	cp := step.WithPrevNode(prevNodeID)
	cp.State = stateBytes
	cp.NextNode = nextNode

	if err := cfg.saver.Put(ctx, cp); err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{
				NodeID: nodeID,
				Op:     "save",
				Err:    err,
			}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "save", err)
		return nil
	}

	sizeBytes := len(stateBytes)
	observability.LogCheckpoint(cfg.logger, cfg.threadKey, nodeID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(sizeBytes))

	return nil
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// This shouldn't happen if compilation was successful
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	// Create node-specific context with enriched logger
	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	// Check for conditional edge first
	if router, exists := cg.getRouter(current); exists {
		// Create node-specific context for the router
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next, err := router(routerCtx, state)
		if err != nil {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      err,
			}
		}

		// Validate router result
		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	// Use simple edges
	edges := cg.getEdges(current)
	if len(edges) == 0 {
		// No outgoing edges - this shouldn't happen if compilation was successful
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	// For simple edges, take the first one
	return edges[0], nil
}
