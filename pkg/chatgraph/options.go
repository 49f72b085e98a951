package chatgraph

import (
	"log/slog"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph/checkpoint"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/observability"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations int

	// Checkpointing
	saver                  checkpoint.Saver
	threadKey              string
	checkpointFailureFatal bool

	// Observability
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: 1000,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// This prevents infinite loops from hanging forever. If a graph
// exceeds this limit, Run returns ErrMaxIterations.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithCheckpointing enables per-node checkpointing keyed by thread.
// After each successful node execution, the state is committed to the saver
// under the given thread key. Checkpoint sequence numbers continue across
// runs of the same thread, so the thread's history accretes over time.
//
// Run returns ErrThreadKeyRequired if saver is non-nil and threadKey is empty.
func WithCheckpointing(saver checkpoint.Saver, threadKey string) RunOption {
	return func(c *runConfig) {
		c.saver = saver
		c.threadKey = threadKey
	}
}

// WithCheckpointFailureFatal makes checkpoint save failures abort the run.
// By default, checkpoint failures are logged and execution continues.
func WithCheckpointFailureFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithRunLogger sets the logger used for run/node lifecycle logging.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for the run.
// Default: no-op recorder.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry span creation for the run and each node.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// resumeConfig holds configuration for Resume/ResumeFrom.
type resumeConfig struct {
	replayNode    bool
	stateOverride func(any) any
	validateState func(any) error
}

// ResumeOption configures resume behavior.
type ResumeOption func(*resumeConfig)

// WithReplay re-executes the checkpointed node instead of continuing
// from its successor.
func WithReplay() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// WithStateOverride transforms the restored state before execution resumes.
// The function receives and must return the state type of the graph.
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation validates the restored state before execution resumes.
// A non-nil error aborts the resume.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}
