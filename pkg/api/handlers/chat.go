package handlers

import (
	"net/http"
	"time"

	"mercator-hq/minerva/pkg/api"
	"mercator-hq/minerva/pkg/api/middleware"
	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/providers"
)

// EndpointChatCompletions is the ledger endpoint label for the
// passthrough surface.
const EndpointChatCompletions = "/v1/chat/completions"

// ChatCompletions handles POST /v1/chat/completions: a single
// passthrough call to the resolved provider in the OpenAI wire shape,
// with optional SSE streaming. No engine runs here; this surface exists
// so OpenAI clients can talk to configured backends directly.
func (d *Deps) ChatCompletions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := api.ParseChatCompletionRequest(r)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		provider, providerName, backendModel, _, err := d.Registry.Resolve(req.Model)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		if req.Stream && !provider.GetCapabilities().SupportsStreaming {
			_ = api.WriteErrorResponse(w, types.NewErrorResponse(
				"The resolved provider does not support streaming.",
				types.ErrorTypeInvalidRequest,
				"stream",
				types.CodeStreamingUnsupported,
			))
			return
		}

		chatReq := &providers.ChatRequest{
			Model:       backendModel,
			Messages:    toProviderMessages(req.Messages),
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Stream:      req.Stream,
			Extra:       req.ExtraBody,
		}

		logger := d.logger().With(
			"request_id", middleware.GetRequestID(r.Context()),
			"model", req.Model,
		)

		start := time.Now()
		if req.Stream {
			d.streamChat(w, r, provider, chatReq, providerName, req.Model, backendModel, start)
			return
		}

		result, err := provider.Chat(r.Context(), chatReq)
		col := d.collector()
		if err != nil {
			col.RecordRequest(providerName, backendModel, "error", time.Since(start))
			logger.Error("chat completion failed", "error", err)
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}
		col.RecordRequest(providerName, backendModel, "ok", time.Since(start))
		d.recordPassthroughUsage(r, providerName, backendModel, time.Since(start), result.Usage, logger)

		_ = api.WriteJSONResponse(w, http.StatusOK, api.FormatChatCompletionResponse(result, req.Model))
	}
}

// streamChat relays a provider stream as OpenAI SSE: one role chunk,
// content chunks as they arrive, an optional usage chunk, then [DONE].
// Errors mid-stream become an SSE error event; the stream always closes
// with [DONE] so clients terminate cleanly.
func (d *Deps) streamChat(w http.ResponseWriter, r *http.Request, provider providers.Provider, chatReq *providers.ChatRequest, providerName, requestedModel, backendModel string, start time.Time) {
	logger := d.logger().With(
		"request_id", middleware.GetRequestID(r.Context()),
		"model", requestedModel,
	)
	col := d.collector()

	stream, err := provider.ChatStream(r.Context(), chatReq)
	if err != nil {
		col.RecordRequest(providerName, backendModel, "error", time.Since(start))
		_ = api.WriteErrorResponse(w, api.HandleError(err))
		return
	}

	api.SetSSEHeaders(w)
	responseID := api.NewResponseID("chatcmpl")

	if err := api.WriteSSEChunk(w, api.FormatStreamRoleChunk(requestedModel, responseID)); err != nil {
		logger.Warn("client disconnected before stream start", "error", err)
		return
	}

	status := "ok"
	var rawUsage map[string]interface{}
	for chunk := range stream {
		if chunk.Error != nil {
			status = "error"
			logger.Error("stream error from provider", "error", chunk.Error)
			_ = api.WriteSSEError(w, api.HandleError(chunk.Error))
			break
		}
		if chunk.Usage != nil {
			rawUsage = chunk.Usage
		}
		if chunk.Delta == "" && chunk.FinishReason == "" {
			continue
		}
		if err := api.WriteSSEChunk(w, api.FormatStreamChunk(chunk, requestedModel, responseID)); err != nil {
			logger.Warn("client disconnected mid-stream", "error", err)
			return
		}
	}

	if usage := api.UsageFromRaw(rawUsage); usage != nil {
		_ = api.WriteSSEChunk(w, api.FormatStreamUsageChunk(usage, requestedModel, responseID))
	}
	_ = api.WriteSSEDone(w)

	col.RecordRequest(providerName, backendModel, status, time.Since(start))
	if status == "ok" {
		d.recordPassthroughUsage(r, providerName, backendModel, time.Since(start), rawUsage, logger)
	}
}
