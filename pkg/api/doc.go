// Package api provides the HTTP surface of the reasoning service.
//
// The API layer is the network-facing gateway for reasoning runs and raw
// model traffic. It parses OpenAI-style JSON bodies, resolves logical model
// ids through the provider registry, drives the reasoning engines, and
// renders results and errors in OpenAI-compatible wire shapes.
//
// # Architecture
//
// The package follows a middleware-based architecture with clean separation
// of concerns:
//
//   - Handlers: Request processing (reasoning runs, chat completions,
//     Responses calls, model catalogue, health checks)
//   - Middleware: Cross-cutting concerns (recovery, logging, request ID,
//     CORS, authentication, timeouts)
//   - Types: OpenAI-compatible request/response data structures
//
// # Endpoints
//
//   - POST /reasoning/deepthink - single-agent iterative reasoning run
//   - POST /reasoning/ultrathink - multi-agent reasoning run with synthesis
//   - POST /v1/chat/completions - OpenAI-compatible passthrough (SSE capable)
//   - POST /v1/responses - Responses API passthrough
//   - GET /v1/models - configured model catalogue
//   - GET /health - liveness probe with provider health summary
//   - GET /ready - readiness probe
//
// # Request Flow
//
// The flow of a reasoning request:
//
//  1. Client sends a JSON body naming a logical model id
//  2. Middleware chain processes the request (recovery → logging →
//     request ID → CORS → auth → timeout)
//  3. Handler parses and validates the request body
//  4. The model id resolves to a provider, backend model and defaults
//  5. Request overrides merge with model defaults and endpoint defaults
//  6. The engine runs, metering every provider call
//  7. The result document, usage and cost render as JSON
//
// # Streaming Support
//
// The chat completions endpoint supports Server-Sent Events (SSE):
//
//	req := &types.ChatCompletionRequest{
//	    Model: "solver-pro",
//	    Messages: []types.ChatMessage{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	    Stream: true,
//	}
//
//	// Client will receive SSE chunks:
//	// data: {"id":"...","choices":[{"delta":{"role":"assistant"}}]}
//	// data: {"id":"...","choices":[{"delta":{"content":"Hello"}}]}
//	// data: [DONE]
//
// Requesting a stream from a provider without streaming support is a 400
// with code "streaming_unsupported".
//
// # Error Handling
//
// All errors follow the OpenAI error response format:
//
//	{
//	  "error": {
//	    "message": "model \"solver-pro\" is not configured",
//	    "type": "not_found",
//	    "param": "model",
//	    "code": "model_not_found"
//	  }
//	}
//
// Admission limiter rejections are 429 with code "rate_limit_exceeded"
// (over the limit) or "rate_limit_timeout" (waited and gave up). Provider
// failures carry the provider name in the error body.
//
// # Thread Safety
//
// Handlers hold no per-request state outside the request context and are
// safe for concurrent use. Each reasoning request gets its own token meter
// and cache scope over the shared stores.
package api
