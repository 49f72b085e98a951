package chatgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func appendGreeting(ctx chatgraph.Context, s State) (State, error) {
//	    s.Messages = append(s.Messages, greeting)
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or chatgraph.END. Returning an
// error aborts the run before any further node executes and before any
// checkpoint for the step is written.
//
// Example:
//
//	func route(ctx chatgraph.Context, s State) (string, error) {
//	    if s.Done {
//	        return chatgraph.END, nil
//	    }
//	    return "process", nil
//	}
type RouterFunc[S any] func(ctx Context, state S) (string, error)
