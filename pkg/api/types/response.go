package types

import (
	"mercator-hq/minerva/pkg/meter"
)

// EngineResponse is the body returned by the reasoning endpoints. Result
// holds the engine's own result document (deep-think or ultra-think); the
// usage fields come from the request's token meter.
type EngineResponse struct {
	// Result is the engine result document.
	Result interface{} `json:"result"`

	// Usage is the aggregate token usage across every call the run made.
	Usage meter.UsageStats `json:"usage"`

	// CostUSD is the estimated total cost of the run.
	CostUSD float64 `json:"cost_usd"`

	// DetailedUsage breaks usage and cost down by provider, then model.
	DetailedUsage map[string]meter.ProviderSummary `json:"detailed_usage"`
}

// ChatCompletionResponse represents an OpenAI-compatible chat completion
// response.
type ChatCompletionResponse struct {
	// ID is a unique identifier for the completion.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices is the list of completion choices.
	Choices []ChatCompletionChoice `json:"choices"`

	// Usage contains token usage statistics.
	Usage *ChatCompletionUsage `json:"usage,omitempty"`
}

// ChatCompletionChoice represents a single completion choice.
type ChatCompletionChoice struct {
	// Index is the position of this choice in the list.
	Index int `json:"index"`

	// Message is the generated message.
	Message ChatMessage `json:"message"`

	// FinishReason is why generation stopped ("stop", "length", etc).
	FinishReason string `json:"finish_reason"`
}

// ChatCompletionUsage contains token usage statistics.
type ChatCompletionUsage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int64 `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int64 `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int64 `json:"total_tokens"`

	// PromptTokensDetails breaks down the prompt tokens. Present only
	// when the provider reported cache activity.
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`

	// CompletionTokensDetails breaks down the completion tokens. Present
	// only when the provider reported reasoning tokens.
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

// PromptTokensDetails itemizes prompt tokens.
type PromptTokensDetails struct {
	// CachedTokens is how many prompt tokens were served from the
	// provider's prompt cache.
	CachedTokens int64 `json:"cached_tokens"`
}

// CompletionTokensDetails itemizes completion tokens.
type CompletionTokensDetails struct {
	// ReasoningTokens is how many completion tokens the model spent on
	// hidden reasoning.
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// ChatCompletionStreamChunk is one SSE event of a streamed completion.
type ChatCompletionStreamChunk struct {
	// ID is the completion identifier, constant across all chunks.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices carries the delta. Empty on the terminal usage chunk.
	Choices []ChatCompletionStreamChoice `json:"choices"`

	// Usage is set only on the final usage chunk, when the provider
	// reported usage for the stream.
	Usage *ChatCompletionUsage `json:"usage,omitempty"`
}

// ChatCompletionStreamChoice is one choice inside a stream chunk.
type ChatCompletionStreamChoice struct {
	// Index is the position of this choice in the list.
	Index int `json:"index"`

	// Delta carries the incremental message content.
	Delta ChatCompletionDelta `json:"delta"`

	// FinishReason is set on the last content chunk of the choice.
	FinishReason *string `json:"finish_reason"`
}

// ChatCompletionDelta is the incremental payload of a stream chunk.
type ChatCompletionDelta struct {
	// Role is set on the first chunk only.
	Role string `json:"role,omitempty"`

	// Content is the text fragment added by this chunk.
	Content string `json:"content,omitempty"`
}

// ResponsesResponse is the body returned by POST /v1/responses.
type ResponsesResponse struct {
	// ID is the response identifier. The provider's own id when it
	// reported one, otherwise generated locally.
	ID string `json:"id"`

	// Object is always "response".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the response was created.
	Created int64 `json:"created"`

	// Model is the model used for the response.
	Model string `json:"model"`

	// OutputText is the aggregated plain text of the output, for callers
	// that do not want to walk the item list.
	OutputText string `json:"output_text"`

	// Output is the normalized output item list.
	Output []map[string]interface{} `json:"output"`

	// Usage contains token usage statistics.
	Usage *ChatCompletionUsage `json:"usage,omitempty"`

	// OutputParsed is the structured output when the provider returned
	// one.
	OutputParsed interface{} `json:"output_parsed,omitempty"`
}

// ModelList is the body returned by GET /v1/models.
type ModelList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data is the configured model catalogue.
	Data []ModelInfo `json:"data"`
}

// ModelInfo describes one configured model.
type ModelInfo struct {
	// ID is the logical model id clients send in requests.
	ID string `json:"id"`

	// Provider is the backing provider name.
	Provider string `json:"provider"`

	// Model is the provider-side model identifier.
	Model string `json:"model"`

	// Level is an informational capability label from the config.
	Level string `json:"level,omitempty"`

	// Features reports the model's effective engine defaults.
	Features ModelFeatures `json:"features"`
}

// ModelFeatures reports the engine defaults a model resolves to.
type ModelFeatures struct {
	MaxIterations         int  `json:"max_iterations"`
	RequiredVerifications int  `json:"required_verifications"`
	EnablePlanning        bool `json:"enable_planning"`
	EnableParallelCheck   bool `json:"enable_parallel_check"`
}
