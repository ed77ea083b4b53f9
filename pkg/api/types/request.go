package types

import (
	"encoding/json"
	"fmt"
)

// DeepThinkRequest is the body of POST /reasoning/deepthink.
//
// Numeric and boolean tuning fields are pointers so that an absent field
// can be told apart from an explicit zero: absent fields fall back to the
// model's configured defaults, then to the endpoint defaults.
type DeepThinkRequest struct {
	// Model is the logical model id from the configured model registry.
	Model string `json:"model"`

	// Problem is the problem statement. Usually a string; structured
	// content (multimodal parts) passes through to the provider.
	Problem interface{} `json:"problem"`

	// History is prior conversation inserted before the problem.
	History []ChatMessage `json:"history,omitempty"`

	// KnowledgeContext is reference material appended to the system prompt.
	KnowledgeContext string `json:"knowledge_context,omitempty"`

	// MaxIterations caps solve/verify cycles. Default: model config, then 20.
	MaxIterations *int `json:"max_iterations,omitempty"`

	// RequiredVerifications is the pass quorum that ends the run early.
	// Default: model config, then 3.
	RequiredVerifications *int `json:"required_verifications,omitempty"`

	// EnablePlanning runs a planning call before the initial solve.
	// Default: model config, then false.
	EnablePlanning *bool `json:"enable_planning,omitempty"`

	// EnableParallelCheck races an arithmetic side-check with every
	// verification. Default: model config, then false.
	EnableParallelCheck *bool `json:"enable_parallel_check,omitempty"`

	// LLMParams are passed through to the provider on every call
	// (temperature, max output tokens, reasoning effort, ...).
	LLMParams map[string]interface{} `json:"llm_params,omitempty"`

	// RateLimit overrides the configured admission limits for this request.
	RateLimit *RateLimitOverrides `json:"rate_limit,omitempty"`
}

// UltraThinkRequest is the body of POST /reasoning/ultrathink.
//
// MaxIterations and RequiredVerifications apply per agent here, which is
// why the endpoint defaults (10, 2) are tighter than DeepThink's.
type UltraThinkRequest struct {
	// Model is the logical model id from the configured model registry.
	Model string `json:"model"`

	// Problem is the problem statement.
	Problem interface{} `json:"problem"`

	// History is prior conversation inserted before the problem.
	History []ChatMessage `json:"history,omitempty"`

	// KnowledgeContext is reference material appended to the system prompt.
	KnowledgeContext string `json:"knowledge_context,omitempty"`

	// NumAgents is how many agents the planner is asked to configure.
	// Default: model config, then 4.
	NumAgents *int `json:"num_agents,omitempty"`

	// ParallelAgents bounds how many agents solve concurrently.
	// Default: model config, then 2.
	ParallelAgents *int `json:"parallel_agents,omitempty"`

	// MaxIterations caps solve/verify cycles per agent. Default: model
	// config, then 10.
	MaxIterations *int `json:"max_iterations,omitempty"`

	// RequiredVerifications is the per-agent pass quorum. Default: model
	// config, then 2.
	RequiredVerifications *int `json:"required_verifications,omitempty"`

	// EnableParallelCheck races an arithmetic side-check with every
	// agent verification. Default: model config, then false.
	EnableParallelCheck *bool `json:"enable_parallel_check,omitempty"`

	// StrictAgentConfigs fails the run when the planner's agent list is
	// unparseable instead of falling back to synthetic configurations.
	// Default: engine config, then false.
	StrictAgentConfigs *bool `json:"strict_agent_configs,omitempty"`

	// LLMParams are passed through to the provider on every call.
	LLMParams map[string]interface{} `json:"llm_params,omitempty"`

	// RateLimit overrides the configured admission limits for this request.
	RateLimit *RateLimitOverrides `json:"rate_limit,omitempty"`
}

// RateLimitOverrides carries per-request admission limit overrides. Each
// present field replaces the corresponding configured default; the merge
// is per field, not all-or-nothing.
type RateLimitOverrides struct {
	// QPS is the token bucket refill rate. An explicit zero configures
	// a bucket that never refills, so Burst is the total admission
	// budget for the key.
	QPS *float64 `json:"qps,omitempty"`

	// Burst is the token bucket capacity.
	Burst *int `json:"burst,omitempty"`

	// WindowLimit is the fixed-window admission count. A window is
	// configured only when both WindowLimit and WindowSeconds are
	// effective.
	WindowLimit *int `json:"window_limit,omitempty"`

	// WindowSeconds is the fixed-window length in seconds.
	WindowSeconds *float64 `json:"window_seconds,omitempty"`

	// Timeout is the wait budget in seconds for the wait strategy.
	Timeout *float64 `json:"timeout,omitempty"`

	// Strategy is "wait" or "fail".
	Strategy *string `json:"strategy,omitempty"`

	// BucketKey overrides the limiter key derived from the config
	// bucket template.
	BucketKey *string `json:"bucket_key,omitempty"`
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is the author of the message ("system", "user", "assistant").
	Role string `json:"role"`

	// Content is the text content of the message.
	// Can be a string or an array of content parts (for multimodal models).
	Content interface{} `json:"content"`

	// Name is the name of the author (optional).
	Name string `json:"name,omitempty"`
}

// ChatCompletionRequest represents an OpenAI-compatible chat completion
// request for the passthrough endpoint.
type ChatCompletionRequest struct {
	// Model is the logical model id to route through.
	Model string `json:"model"`

	// Messages is the conversation as a list of messages.
	Messages []ChatMessage `json:"messages"`

	// Temperature controls randomness in the response (0.0 to 2.0).
	// Optional, defaults to 1.0.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	// Optional, defaults to provider-specific limits.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Stream enables server-sent events (SSE) streaming.
	// Optional, defaults to false.
	Stream bool `json:"stream,omitempty"`

	// ExtraBody is passed to the provider verbatim, for provider-specific
	// parameters the typed fields do not cover.
	ExtraBody map[string]interface{} `json:"extra_body,omitempty"`
}

// ResponsesRequest is the body of POST /v1/responses.
type ResponsesRequest struct {
	// Model is the logical model id to route through.
	Model string `json:"model"`

	// Input is the prompt: either a bare string or a list of messages.
	Input ResponseInput `json:"input"`

	// Store asks the provider to retain the response for later chaining.
	// Optional, defaults to true.
	Store *bool `json:"store,omitempty"`

	// PreviousResponseID chains this request onto a stored response.
	PreviousResponseID string `json:"previous_response_id,omitempty"`

	// Temperature controls randomness in the response.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxOutputTokens caps generated tokens.
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`

	// ExtraBody is passed to the provider verbatim.
	ExtraBody map[string]interface{} `json:"extra_body,omitempty"`
}

// ResponseInput accepts the two wire forms of the Responses API input
// field: a bare string or a list of role/content items.
type ResponseInput struct {
	// Text holds the string form. Empty when Items is set.
	Text string

	// Items holds the list form.
	Items []ResponseInputItem

	// set records that the field appeared in the request at all.
	set bool
}

// ResponseInputItem is one message in the list form of input.
type ResponseInputItem struct {
	// Role is the message author. Defaults to "user" when omitted.
	Role string `json:"role,omitempty"`

	// Content is the message content.
	Content interface{} `json:"content"`
}

// UnmarshalJSON decodes either wire form.
func (in *ResponseInput) UnmarshalJSON(data []byte) error {
	in.set = true

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		in.Text = text
		return nil
	}

	var items []ResponseInputItem
	if err := json.Unmarshal(data, &items); err == nil {
		in.Items = items
		return nil
	}

	return fmt.Errorf("input must be a string or a list of messages")
}

// MarshalJSON re-encodes the form that was decoded.
func (in ResponseInput) MarshalJSON() ([]byte, error) {
	if in.Items != nil {
		return json.Marshal(in.Items)
	}
	return json.Marshal(in.Text)
}

// IsZero reports whether the input field was absent or empty.
func (in ResponseInput) IsZero() bool {
	return !in.set || (in.Text == "" && len(in.Items) == 0)
}

// Validate checks the DeepThink request fields.
func (r *DeepThinkRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if isEmptyProblem(r.Problem) {
		return &ValidationError{Field: "problem", Message: "problem is required"}
	}
	if r.MaxIterations != nil && *r.MaxIterations < 1 {
		return &ValidationError{
			Field:   "max_iterations",
			Message: "max_iterations must be greater than 0",
		}
	}
	if r.RequiredVerifications != nil && *r.RequiredVerifications < 1 {
		return &ValidationError{
			Field:   "required_verifications",
			Message: "required_verifications must be greater than 0",
		}
	}
	if err := validateHistory(r.History); err != nil {
		return err
	}
	return r.RateLimit.validate()
}

// Validate checks the UltraThink request fields.
func (r *UltraThinkRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if isEmptyProblem(r.Problem) {
		return &ValidationError{Field: "problem", Message: "problem is required"}
	}
	if r.NumAgents != nil && (*r.NumAgents < 1 || *r.NumAgents > 32) {
		return &ValidationError{
			Field:   "num_agents",
			Message: "num_agents must be between 1 and 32",
		}
	}
	if r.ParallelAgents != nil && *r.ParallelAgents < 1 {
		return &ValidationError{
			Field:   "parallel_agents",
			Message: "parallel_agents must be greater than 0",
		}
	}
	if r.MaxIterations != nil && *r.MaxIterations < 1 {
		return &ValidationError{
			Field:   "max_iterations",
			Message: "max_iterations must be greater than 0",
		}
	}
	if r.RequiredVerifications != nil && *r.RequiredVerifications < 1 {
		return &ValidationError{
			Field:   "required_verifications",
			Message: "required_verifications must be greater than 0",
		}
	}
	if err := validateHistory(r.History); err != nil {
		return err
	}
	return r.RateLimit.validate()
}

// Validate checks the chat completion request fields.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{
			Field:   "messages",
			Message: "messages must contain at least one message",
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0.0 and 2.0",
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens < 1 {
		return &ValidationError{
			Field:   "max_tokens",
			Message: "max_tokens must be greater than 0",
		}
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "message role is required",
			}
		}
		if msg.Content == nil {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].content", i),
				Message: "message content is required",
			}
		}
	}
	return nil
}

// Validate checks the Responses request fields.
func (r *ResponsesRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if r.Input.IsZero() {
		return &ValidationError{Field: "input", Message: "input is required"}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0.0 and 2.0",
		}
	}
	if r.MaxOutputTokens != nil && *r.MaxOutputTokens < 1 {
		return &ValidationError{
			Field:   "max_output_tokens",
			Message: "max_output_tokens must be greater than 0",
		}
	}
	return nil
}

// validate checks rate limit overrides. A nil receiver is valid: the
// request simply carried no overrides.
func (o *RateLimitOverrides) validate() error {
	if o == nil {
		return nil
	}
	if o.QPS != nil && *o.QPS <= 0 {
		return &ValidationError{
			Field:   "rate_limit.qps",
			Message: "qps must be greater than 0",
		}
	}
	if o.Burst != nil && *o.Burst < 1 {
		return &ValidationError{
			Field:   "rate_limit.burst",
			Message: "burst must be greater than 0",
		}
	}
	if o.WindowLimit != nil && *o.WindowLimit < 1 {
		return &ValidationError{
			Field:   "rate_limit.window_limit",
			Message: "window_limit must be greater than 0",
		}
	}
	if o.WindowSeconds != nil && *o.WindowSeconds <= 0 {
		return &ValidationError{
			Field:   "rate_limit.window_seconds",
			Message: "window_seconds must be greater than 0",
		}
	}
	if o.Timeout != nil && *o.Timeout < 0 {
		return &ValidationError{
			Field:   "rate_limit.timeout",
			Message: "timeout must not be negative",
		}
	}
	if o.Strategy != nil && *o.Strategy != "wait" && *o.Strategy != "fail" {
		return &ValidationError{
			Field:   "rate_limit.strategy",
			Message: `strategy must be "wait" or "fail"`,
		}
	}
	return nil
}

// validateHistory checks that every history message carries a role.
func validateHistory(history []ChatMessage) error {
	for i, msg := range history {
		if msg.Role == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("history[%d].role", i),
				Message: "history message role is required",
			}
		}
	}
	return nil
}

// isEmptyProblem reports whether a problem field is absent or blank.
func isEmptyProblem(problem interface{}) bool {
	if problem == nil {
		return true
	}
	if s, ok := problem.(string); ok {
		return s == ""
	}
	return false
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}
