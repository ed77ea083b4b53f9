package providers

import "context"

// Provider is a capability-bearing handle over a specific LLM backend.
// Implementations normalize requests and responses, map backend failures
// into the unified error taxonomy, and own their retry policy.
//
// Callers MUST consult GetCapabilities before selecting an entry point:
// calling Response on a provider without SupportsResponses fails with an
// InvalidRequestError and performs no network I/O.
//
// All implementations must be safe for concurrent use; a single instance
// is shared across requests for the life of the process.
//
// Example usage:
//
//	res, err := provider.Chat(ctx, &providers.ChatRequest{
//	    Model: "gpt-4o",
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: "Prove that sqrt(2) is irrational."},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Content)
type Provider interface {
	// Chat performs a non-streaming completion.
	Chat(ctx context.Context, req *ChatRequest) (*CallResult, error)

	// ChatStream performs a streaming completion. The returned channel is
	// single-pass and non-restartable; it is closed after the terminal
	// chunk. Errors mid-stream arrive as a chunk with Error set. The final
	// chunk may carry Usage with no delta.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan *StreamChunk, error)

	// Response performs a Responses-style call: structured output via
	// ResponseFormat and provider-side prefix caching via
	// PreviousResponseID/Store. Required only when the capabilities
	// declare SupportsResponses.
	Response(ctx context.Context, req *ResponseRequest) (*CallResult, error)

	// GetName returns the provider's configured name.
	GetName() string

	// GetType returns the provider type (openai, anthropic, generic).
	GetType() string

	// GetCapabilities returns the immutable capability flags.
	GetCapabilities() Capabilities

	// HealthCheck performs a synchronous health check.
	HealthCheck(ctx context.Context) error

	// IsHealthy returns the current health status.
	IsHealthy() bool

	// GetHealth returns detailed health information.
	GetHealth() ProviderHealth

	// Close releases resources and stops background health checking.
	Close() error
}
