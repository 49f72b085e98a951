// Package llm provides the model client used by the response generator.
package llm

import "context"

// Client is the interface for LLM completion providers.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete performs a completion call and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
