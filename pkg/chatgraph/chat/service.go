package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/checkpoint"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/config"
	"github.com/sfarooqi/chatgraph/pkg/chatgraph/observability"
)

// Service handles inbound messages end to end: validate, restore the
// thread's history, run the workflow graph with per-node checkpointing,
// and return the final state.
//
// Each inbound message is one independent run. Commit ordering within a
// thread is guaranteed by the saver; a dispatch failure does not roll back
// history committed earlier in the run, and no redelivery is attempted.
type Service struct {
	graph       *chatgraph.CompiledGraph[State]
	checkpoints *checkpoint.Service
	settings    config.Settings
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService compiles the workflow and wires it to checkpoint persistence.
func NewService(w *Workflow, checkpoints *checkpoint.Service, settings config.Settings, opts ...ServiceOption) (*Service, error) {
	graph, err := w.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}

	s := &Service{
		graph:       graph,
		checkpoints: checkpoints,
		settings:    settings.Normalize(),
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleMessage processes one inbound message and returns the final state.
// The returned state's Answer holds the delivered reply on success.
func (s *Service) HandleMessage(ctx context.Context, in Inbound) (State, error) {
	if err := in.Validate(); err != nil {
		s.metrics.RecordMessage(ctx, string(in.Type), false)
		return State{}, err
	}
	s.metrics.RecordMessage(ctx, string(in.Type), true)

	threadKey := in.ThreadKey()
	saver := s.checkpoints.NewSaver(ctx, s.settings.AsyncCheckpoints)

	history, err := s.restoreHistory(ctx, saver, threadKey)
	if err != nil {
		return State{}, err
	}

	state := State{Inbound: in, Messages: history}

	gctx := chatgraph.NewContext(ctx, chatgraph.WithLogger(s.logger))
	return s.graph.Run(gctx, state,
		chatgraph.WithCheckpointing(saver, threadKey),
		chatgraph.WithRunLogger(s.logger),
		chatgraph.WithMetrics(s.metrics),
	)
}

// restoreHistory loads the thread's messages from its latest checkpoint.
// A thread with no checkpoints starts empty; a corrupt checkpoint is an
// error rather than silent history loss.
func (s *Service) restoreHistory(ctx context.Context, saver checkpoint.Saver, threadKey string) ([]Message, error) {
	cp, err := saver.Latest(ctx, threadKey)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore thread %s: %w", threadKey, err)
	}

	var prev State
	if err := json.Unmarshal(cp.State, &prev); err != nil {
		return nil, fmt.Errorf("restore thread %s: decode state: %w", threadKey, err)
	}
	return prev.Messages, nil
}

// DeleteThread removes the sender's conversation history. Best effort;
// failures are logged by the checkpoint service, never surfaced.
func (s *Service) DeleteThread(ctx context.Context, senderID string) {
	s.checkpoints.DeleteThread(ctx, Inbound{SenderID: senderID}.ThreadKey())
}

// Close releases the checkpoint saver owned by the service.
func (s *Service) Close() error {
	return s.checkpoints.Close()
}
