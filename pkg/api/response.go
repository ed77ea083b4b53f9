package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

// NewResponseID generates a wire-format response identifier such as
// "chatcmpl-4bf92f3577b3..." or "resp-0af7651916cd...".
func NewResponseID(prefix string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%s-%x", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf[:]))
}

// UsageFromRaw converts a provider's raw usage payload to the OpenAI chat
// completion usage shape. Returns nil when the provider reported no usage.
// The detail blocks appear only when the provider reported cached or
// reasoning tokens.
func UsageFromRaw(raw map[string]interface{}) *types.ChatCompletionUsage {
	if raw == nil {
		return nil
	}

	stats := meter.ExtractUsage(raw)
	usage := &types.ChatCompletionUsage{
		PromptTokens:     stats.InputTokens,
		CompletionTokens: stats.OutputTokens,
		TotalTokens:      stats.InputTokens + stats.OutputTokens,
	}
	if stats.CachedTokens > 0 {
		usage.PromptTokensDetails = &types.PromptTokensDetails{
			CachedTokens: stats.CachedTokens,
		}
	}
	if stats.ReasoningTokens > 0 {
		usage.CompletionTokensDetails = &types.CompletionTokensDetails{
			ReasoningTokens: stats.ReasoningTokens,
		}
	}
	return usage
}

// FormatChatCompletionResponse converts a provider call result to OpenAI
// chat completion format. It generates a unique response ID, sets the
// object type, and includes usage statistics.
//
// Example usage:
//
//	result, err := provider.Chat(ctx, req)
//	if err != nil {
//	    return err
//	}
//	openaiResp := FormatChatCompletionResponse(result, "solver-pro")
func FormatChatCompletionResponse(result *providers.CallResult, requestedModel string) *types.ChatCompletionResponse {
	finishReason := result.FinishReason
	if finishReason == "" {
		finishReason = providers.FinishReasonStop
	}

	return &types.ChatCompletionResponse{
		ID:      NewResponseID("chatcmpl"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.ChatCompletionChoice{
			{
				Index: 0,
				Message: types.ChatMessage{
					Role:    "assistant",
					Content: result.Content,
				},
				FinishReason: finishReason,
			},
		},
		Usage: UsageFromRaw(result.Usage),
	}
}

// FormatStreamRoleChunk builds the opening chunk of an SSE stream. It
// carries only the assistant role, matching the OpenAI wire protocol.
func FormatStreamRoleChunk(requestedModel, responseID string) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.ChatCompletionStreamChoice{
			{
				Index: 0,
				Delta: types.ChatCompletionDelta{Role: "assistant"},
			},
		},
	}
}

// FormatStreamChunk converts a provider stream chunk to OpenAI chat
// completion chunk format. This is used for Server-Sent Events (SSE)
// streaming responses.
func FormatStreamChunk(chunk *providers.StreamChunk, requestedModel, responseID string) *types.ChatCompletionStreamChunk {
	streamChunk := &types.ChatCompletionStreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.ChatCompletionStreamChoice{
			{
				Index: 0,
				Delta: types.ChatCompletionDelta{Content: chunk.Delta},
			},
		},
	}

	// Include finish_reason only in the final content chunk.
	if chunk.FinishReason != "" {
		finishReason := chunk.FinishReason
		streamChunk.Choices[0].FinishReason = &finishReason
	}

	return streamChunk
}

// FormatStreamUsageChunk builds the terminal usage chunk of an SSE stream.
// Choices is an empty list rather than nil so the wire form matches the
// OpenAI protocol ("choices":[]).
func FormatStreamUsageChunk(usage *types.ChatCompletionUsage, requestedModel, responseID string) *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []types.ChatCompletionStreamChoice{},
		Usage:   usage,
	}
}

// FormatResponsesResponse converts a provider call result to the Responses
// API wire format. The provider's own response id is kept when it issued
// one; otherwise a local id is generated. Providers that answered through
// the plain chat shape get a synthesized single-message output list.
func FormatResponsesResponse(result *providers.CallResult, providerName, requestedModel string) *types.ResponsesResponse {
	responseID := result.ResponseID
	if responseID == "" {
		responseID = NewResponseID("resp")
	}

	output := providers.NormalizeOutputItems(providerName, result.RawOutput)
	if len(output) == 0 {
		output = []map[string]interface{}{
			{
				"type": providers.PartMessage,
				"role": "assistant",
				"content": []interface{}{
					map[string]interface{}{
						"type": providers.PartOutputText,
						"text": result.Content,
					},
				},
			},
		}
	}

	outputText := providers.CollectOutputText(output)
	if outputText == "" {
		outputText = result.Content
	}

	resp := &types.ResponsesResponse{
		ID:         responseID,
		Object:     "response",
		Created:    time.Now().Unix(),
		Model:      requestedModel,
		OutputText: outputText,
		Output:     output,
		Usage:      UsageFromRaw(result.Usage),
	}
	if result.OutputParsed != nil {
		resp.OutputParsed = result.OutputParsed
	}
	return resp
}

// WriteJSONResponse writes a JSON response to the HTTP response writer.
// It sets the appropriate content-type header and handles marshaling errors.
//
// If marshaling fails, it writes a 500 error response.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	return nil
}

// WriteErrorResponse writes an OpenAI-compatible error response.
// It extracts the appropriate HTTP status code from the error type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	statusCode := errResp.Error.HTTPStatusCode()
	return WriteJSONResponse(w, statusCode, errResp)
}

// WriteSSEChunk writes a single chunk in Server-Sent Events format.
// Each chunk is formatted as:
//
//	data: {"id":"chatcmpl-123","object":"chat.completion.chunk",...}
//
// Followed by two newlines (\n\n).
func WriteSSEChunk(w http.ResponseWriter, chunk *types.ChatCompletionStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE chunk: %w", err)
	}

	// Write SSE formatted chunk: "data: <json>\n\n"
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE chunk: %w", err)
	}

	// Flush immediately for real-time streaming
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// WriteSSEDone writes the final "[DONE]" marker for SSE streams.
// This signals to the client that the stream has completed.
func WriteSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write SSE done marker: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// WriteSSEError writes an error in SSE format.
// This allows errors to be sent mid-stream if something goes wrong.
func WriteSSEError(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	errorData := map[string]interface{}{
		"error": errResp.Error,
	}

	data, err := json.Marshal(errorData)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// SetSSEHeaders sets the appropriate headers for Server-Sent Events streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
}
