package openai

import (
	"encoding/json"
	"fmt"

	"mercator-hq/minerva/pkg/providers"
)

// OpenAI wire types. Requests are built as open maps so caller-supplied
// parameters (reasoning_effort, top_p, seed, ...) pass through loss-free;
// responses are decoded into typed shapes with the usage object kept raw
// for downstream metering.

// ChatCompletion is the wire shape of a chat completions response.
type ChatCompletion struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatChoice           `json:"choices"`
	Usage   map[string]interface{} `json:"usage"`
}

// ChatChoice is a single completion choice.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatMessage is the assistant message inside a choice. Content is either a
// plain string or a list of typed parts.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ChatCompletionChunk is the wire shape of one streaming SSE chunk.
type ChatCompletionChunk struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChunkChoice          `json:"choices"`
	Usage   map[string]interface{} `json:"usage,omitempty"`
}

// ChunkChoice is a choice within a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta carries the incremental fields of a streaming chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Response is the wire shape of a Responses API response.
type Response struct {
	ID                string                   `json:"id"`
	Object            string                   `json:"object"`
	CreatedAt         int64                    `json:"created_at"`
	Model             string                   `json:"model"`
	Status            string                   `json:"status"`
	Output            []map[string]interface{} `json:"output"`
	Usage             map[string]interface{}   `json:"usage"`
	Error             *ResponseError           `json:"error,omitempty"`
	IncompleteDetails *IncompleteDetails       `json:"incomplete_details,omitempty"`
}

// ResponseError is the embedded error object of a failed response.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// IncompleteDetails explains why a response stopped early.
type IncompleteDetails struct {
	Reason string `json:"reason,omitempty"`
}

// buildChatPayload builds the chat completions request body. Extra fields are
// merged last and may override the standard ones.
func buildChatPayload(req *providers.ChatRequest, stream bool) map[string]interface{} {
	messages := make([]map[string]interface{}, 0, len(req.Messages))
	for _, m := range providers.NormalizeMessages(req.Messages) {
		wire := map[string]interface{}{
			"role":    m.Role,
			"content": m.Content,
		}
		if m.Name != "" {
			wire["name"] = m.Name
		}
		messages = append(messages, wire)
	}

	payload := map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		payload["max_tokens"] = *req.MaxTokens
	}
	if stream {
		payload["stream"] = true
		// Ask for the final usage-bearing chunk so streamed calls meter too
		payload["stream_options"] = map[string]interface{}{"include_usage": true}
	}
	for k, v := range req.Extra {
		payload[k] = v
	}
	return payload
}

// buildResponsesPayload builds the Responses API request body. Store is
// always sent explicitly: store=false must reach the backend, not be omitted.
func buildResponsesPayload(req *providers.ResponseRequest) map[string]interface{} {
	input := make([]map[string]interface{}, 0, len(req.Input))
	for _, m := range providers.NormalizeMessages(req.Input) {
		input = append(input, map[string]interface{}{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	payload := map[string]interface{}{
		"model": req.Model,
		"input": input,
		"store": req.Store,
	}
	if req.PreviousResponseID != "" {
		payload["previous_response_id"] = req.PreviousResponseID
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.MaxOutputTokens != nil {
		payload["max_output_tokens"] = *req.MaxOutputTokens
	}
	if req.ResponseFormat != nil {
		payload["text"] = map[string]interface{}{"format": req.ResponseFormat}
	}
	for k, v := range req.Extra {
		payload[k] = v
	}
	return payload
}

// transformChatResponse maps a chat completion to the call result shape.
// The chat completion id is not a Responses conversation handle, so
// ResponseID stays empty.
func transformChatResponse(resp *ChatCompletion) (*providers.CallResult, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]

	return &providers.CallResult{
		Content:      providers.ExtractTextContent(choice.Message.Content),
		Usage:        resp.Usage,
		FinishReason: normalizeFinishReason(choice.FinishReason),
	}, nil
}

// transformResponseResult maps a Responses API response to the call result
// shape. When the caller requested structured output, the aggregated text is
// parsed as a JSON object client-side (the wire format has no output_parsed).
func transformResponseResult(providerName string, resp *Response, wantParsed bool) (*providers.CallResult, error) {
	if resp.Status == "failed" {
		message := "response failed"
		if resp.Error != nil && resp.Error.Message != "" {
			message = resp.Error.Message
		}
		return nil, &providers.ProviderError{
			Provider: providerName,
			Message:  message,
		}
	}

	result := &providers.CallResult{
		Content:      providers.CollectOutputText(resp.Output),
		RawOutput:    resp.Output,
		Usage:        resp.Usage,
		ResponseID:   resp.ID,
		FinishReason: finishReasonFromStatus(resp),
	}

	if wantParsed && result.Content != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(result.Content), &parsed); err == nil {
			result.OutputParsed = parsed
		}
	}

	return result, nil
}

// finishReasonFromStatus maps a Responses status to a finish reason.
func finishReasonFromStatus(resp *Response) string {
	switch resp.Status {
	case "completed":
		return providers.FinishReasonStop
	case "incomplete":
		if resp.IncompleteDetails != nil {
			switch resp.IncompleteDetails.Reason {
			case "max_output_tokens":
				return providers.FinishReasonLength
			case "content_filter":
				return providers.FinishReasonContentFilter
			}
		}
		return providers.FinishReasonLength
	default:
		return resp.Status
	}
}

// transformStreamChunk maps a streaming chunk into the provider-agnostic
// shape. Chunks with no choices are usage-only carriers.
func transformStreamChunk(chunk *ChatCompletionChunk) *providers.StreamChunk {
	out := &providers.StreamChunk{}
	if len(chunk.Choices) > 0 {
		out.Delta = chunk.Choices[0].Delta.Content
		out.FinishReason = normalizeFinishReason(chunk.Choices[0].FinishReason)
	}
	if chunk.Usage != nil {
		out.Usage = chunk.Usage
	}
	return out
}

// normalizeFinishReason normalizes OpenAI finish reasons to provider-agnostic values.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop":
		return providers.FinishReasonStop
	case "length":
		return providers.FinishReasonLength
	case "tool_calls", "function_call":
		return providers.FinishReasonToolCalls
	case "content_filter":
		return providers.FinishReasonContentFilter
	default:
		return reason
	}
}
