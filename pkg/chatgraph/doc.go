/*
Package chatgraph provides graph-based orchestration for conversational
messaging workflows.

# Overview

chatgraph is a Go library for building and executing directed graphs where
nodes perform work and edges define flow. It is designed for chat-message
pipelines: route an inbound message by type, normalize it, generate a
response, and dispatch it, with every step checkpointed under the
conversation's thread key.

The library provides:
  - Type-safe generics for state management
  - Compile-time validation of graph structure
  - Thread-keyed checkpointing with durable and in-memory backends
  - OpenTelemetry integration for observability

# Basic Usage

Create a graph with nodes and edges, then compile and run:

	type State struct {
	    Input  string
	    Output string
	}

	func process(ctx chatgraph.Context, s State) (State, error) {
	    s.Output = "Processed: " + s.Input
	    return s, nil
	}

	func main() {
	    graph := chatgraph.NewGraph[State]().
	        AddNode("process", process).
	        AddEdge("process", chatgraph.END).
	        SetEntry("process")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := chatgraph.NewContext(context.Background())
	    result, err := compiled.Run(ctx, State{Input: "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.Output) // "Processed: hello"
	}

# Conditional Branching

Use conditional edges for decision points. The router returns the ID of
the next node, or an error to abort the step before its checkpoint is
committed:

	graph.AddConditionalEdge("ingress", func(ctx chatgraph.Context, s State) (string, error) {
	    switch s.Kind {
	    case "text":
	        return "normalize_text", nil
	    case "image":
	        return "normalize_image", nil
	    default:
	        return "", fmt.Errorf("unsupported message type %q", s.Kind)
	    }
	})

Returning an unknown node ID or an empty string is a runtime error.

# Loops

Create loops by having conditional edges that return to earlier nodes.
Loops are protected by max iterations (default 1000); configure with
WithMaxIterations.

# Checkpointing

Checkpoints are keyed by a thread key so a conversation's history accretes
across runs:

	svc := checkpoint.NewService(checkpoint.ServiceConfig{
	    DatabaseURL: os.Getenv("DATABASE_URL"),
	}, logger)
	defer svc.Close()

	saver := svc.NewSaver(ctx, false)
	result, err := compiled.Run(ctx, state,
	    chatgraph.WithCheckpointing(saver, "whatsapp:15551234567"))

	// Resume after crash
	result, err = compiled.Resume(ctx, saver, "whatsapp:15551234567")

A checkpoint is committed after each successful node execution and its
routing decision. When resuming, execution continues from the node after
the last checkpoint.

# Observability

Enable logging, metrics, and tracing per run:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	result, err := compiled.Run(ctx, state,
	    chatgraph.WithRunLogger(logger),
	    chatgraph.WithMetrics(observability.NewMetricsRecorder()),
	    chatgraph.WithTracing(observability.NewSpanManager()))

Logs include structured fields: run_id, node_id, thread_key, duration_ms.
OpenTelemetry metrics: chatgraph.node.executions, chatgraph.node.latency_ms, etc.
OpenTelemetry tracing: chatgraph.run > chatgraph.node.{id} spans.

# Error Handling

Errors include context about which node failed:

	result, err := compiled.Run(ctx, state)
	var nodeErr *chatgraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("Node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

	var routerErr *chatgraph.RouterError
	if errors.As(err, &routerErr) {
	    log.Printf("Routing from %s failed: %v", routerErr.FromNode, routerErr.Err)
	}

Panics in nodes are recovered and converted to PanicError with stack trace.

# Thread Safety

  - Graph[S] is NOT safe for concurrent use during construction
  - CompiledGraph[S] IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - Saver implementations are safe for concurrent use

# Subpackages

  - checkpoint: thread-keyed checkpoint persistence (Postgres, SQLite, memory)
  - chat: message types, workflow nodes, and the message handling service
  - llm: response generation clients
  - whatsapp: WhatsApp Cloud API transport
  - speech: audio transcription
  - config: configuration loading
  - observability: logging, metrics, and tracing helpers
*/
package chatgraph
