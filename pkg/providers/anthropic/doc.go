// Package anthropic implements the Anthropic provider adapter.
//
// This package provides an implementation of the providers.Provider interface
// for Anthropic's Messages API. It supports:
//
//   - Messages API (streaming and non-streaming)
//   - Vision via image source blocks (data URLs are converted automatically)
//   - Loss-free parameter passthrough (top_p, thinking, stop_sequences, ...)
//   - Raw usage propagation for downstream metering
//
// # Basic Usage
//
//	config := providers.ProviderConfig{
//	    Name:    "anthropic",
//	    Type:    "anthropic",
//	    BaseURL: "https://api.anthropic.com",
//	    APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
//	}
//
//	provider, err := anthropic.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	result, err := provider.Chat(context.Background(), &providers.ChatRequest{
//	    Model: "claude-sonnet-4-20250514",
//	    Messages: []providers.Message{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Content)
//
// # Streaming
//
//	chunks, err := provider.ChatStream(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        log.Fatal(chunk.Error)
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// The final chunk before the stream closes carries the stop reason and the
// combined usage (input tokens from message_start, output tokens from
// message_delta).
//
// # Request Transformation
//
// The adapter maps the canonical request shape onto Anthropic's wire format:
//
//   - System messages are extracted into the top-level "system" field
//   - Consecutive same-role turns are merged (the API requires alternation)
//   - max_tokens is mandatory and defaults to 4096 when unset
//   - OpenAI-style image_url parts become image source blocks; data URLs
//     turn into base64 sources, plain URLs into url sources
//
// # Responses API
//
// The Messages API has no server-side response storage, so
// SupportsResponses is false and Response returns invalid_request. Callers
// that chain reasoning turns fall back to resending the full history.
//
// # Error Handling
//
// HTTP failures map to the unified taxonomy of the providers package:
//
//   - 401/403 -> AuthError
//   - 429 -> RateLimitError (Retry-After honored, retried)
//   - 400 -> InvalidRequestError
//   - 404 -> NotFoundError
//   - 5xx -> ServerError (retried automatically)
//
// A mid-stream error event surfaces as a chunk with Error set to a
// StreamError carrying the upstream message.
package anthropic
