package providers

import "time"

// Message represents a single message in a conversation.
// It is provider-agnostic and will be transformed to provider-specific formats.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is either a plain string or an ordered list of typed parts
	// ({type: text|image_url|tool_use|tool_result, ...}). Messages are
	// immutable once handed to an engine.
	Content interface{} `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// Capabilities declares the feature set of a provider backend.
// Flags are immutable after construction; engines and handlers branch on
// them instead of probing the network.
type Capabilities struct {
	// SupportsResponses indicates the provider offers a Responses-style API
	// (structured output, previous_response_id continuation, server-side store)
	SupportsResponses bool `json:"supports_responses"`

	// SupportsStreaming indicates chat_stream is available
	SupportsStreaming bool `json:"supports_streaming"`

	// SupportsVision indicates image_url content parts are accepted
	SupportsVision bool `json:"supports_vision"`

	// SupportsThinking indicates the backend reports reasoning tokens
	SupportsThinking bool `json:"supports_thinking"`

	// SupportsCaching indicates provider-side prompt caching is available
	SupportsCaching bool `json:"supports_caching"`
}

// ChatRequest represents a provider-agnostic chat completion request.
// It is transformed to provider-specific formats by each adapter.
type ChatRequest struct {
	// Model is the backend model identifier (e.g., "gpt-4o", "claude-sonnet-4-20250514")
	Model string `json:"model"`

	// Messages is the conversation to complete
	Messages []Message `json:"messages"`

	// Temperature controls randomness; nil leaves the backend default
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate; nil leaves
	// the backend default
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`

	// Extra carries passthrough sampling parameters (top_p, stop, ...)
	// merged into the wire request without interpretation
	Extra map[string]interface{} `json:"-"`
}

// ResponseRequest represents a Responses-style call: richer than chat, used
// for structured output and provider-side prefix caching. Only valid on
// providers whose capabilities declare SupportsResponses.
type ResponseRequest struct {
	// Model is the backend model identifier
	Model string `json:"model"`

	// Input is the message sequence to continue
	Input []Message `json:"input"`

	// Temperature controls randomness; nil leaves the backend default
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxOutputTokens caps generated tokens; nil leaves the backend default
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`

	// PreviousResponseID continues from a stored server-side response,
	// reusing the provider's cached prefix state
	PreviousResponseID string `json:"previous_response_id,omitempty"`

	// Store asks the provider to retain the response for later continuation
	Store bool `json:"store,omitempty"`

	// ResponseFormat requests structured output (e.g., a json_schema block)
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`

	// Extra carries passthrough parameters merged into the wire request
	Extra map[string]interface{} `json:"-"`
}

// CallResult is the normalized result of a non-streaming provider call.
type CallResult struct {
	// Content is the assistant text, concatenated across output parts
	Content string `json:"content"`

	// RawOutput preserves the provider's multi-part output in canonical
	// shape (see NormalizeOutputItems); nil when the backend returned
	// plain text only
	RawOutput []map[string]interface{} `json:"raw_output,omitempty"`

	// OutputParsed is the structured object when the call requested a JSON
	// schema and the backend (or adapter) could parse one
	OutputParsed map[string]interface{} `json:"output_parsed,omitempty"`

	// Usage is the provider's raw usage payload. Field names vary by
	// backend (input_tokens vs prompt_tokens); the meter owns aliasing.
	Usage map[string]interface{} `json:"usage,omitempty"`

	// ResponseID is the provider-issued handle for continuation
	// (Responses API only)
	ResponseID string `json:"response_id,omitempty"`

	// FinishReason indicates why generation stopped
	// (stop, length, tool_calls, content_filter)
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamChunk represents a single chunk in a streaming response.
// The final chunk may carry Usage with an empty Delta.
type StreamChunk struct {
	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final content chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is the provider's usage payload, included near the end of the
	// stream when the backend supports it
	Usage map[string]interface{} `json:"usage,omitempty"`

	// Error is set if an error occurred during streaming
	Error error `json:"-"`
}

// ProviderHealth tracks the health status of a provider.
type ProviderHealth struct {
	// IsHealthy indicates whether the provider is currently healthy
	IsHealthy bool

	// LastCheck is the timestamp of the last health check
	LastCheck time.Time

	// LastError is the most recent error encountered (nil if healthy)
	LastError error

	// ConsecutiveFailures counts sequential health check failures
	ConsecutiveFailures int

	// LastSuccessfulRequest is the timestamp of the last successful request
	LastSuccessfulRequest time.Time

	// TotalRequests is the total number of requests sent to this provider
	TotalRequests int64

	// FailedRequests is the total number of failed requests
	FailedRequests int64
}

// ProviderConfig contains configuration for a single provider instance.
// This is a subset of config.ProviderConfig with only the fields needed by adapters.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "openai", "anthropic")
	Name string

	// Type is the provider type (openai, anthropic, generic)
	Type string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Timeout is the request timeout duration
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// Capabilities declares the backend feature set; the zero value is
	// filled with per-type defaults by the adapter constructors
	Capabilities *Capabilities

	// HealthCheckInterval is how often to run health checks
	HealthCheckInterval time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part type constants (canonical shapes after normalization)
const (
	PartText       = "text"
	PartOutputText = "output_text"
	PartImageURL   = "image_url"
	PartToolUse    = "tool_use"
	PartToolResult = "tool_result"
	PartMessage    = "message"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)
