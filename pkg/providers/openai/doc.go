// Package openai implements the OpenAI provider adapter.
//
// This package provides an implementation of the providers.Provider interface
// for OpenAI's chat completions API and Responses API. It supports:
//
//   - Chat completions (streaming and non-streaming)
//   - The Responses API: stored response chaining via previous_response_id
//     and structured output via JSON schemas
//   - Loss-free parameter passthrough (reasoning_effort, top_p, seed, ...)
//   - Raw usage propagation for downstream metering
//
// # Basic Usage
//
//	config := providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	}
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	result, err := provider.Chat(context.Background(), &providers.ChatRequest{
//	    Model: "gpt-4o",
//	    Messages: []providers.Message{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Content)
//
// # Responses API
//
// The Responses API keeps server-side conversation state. Passing the id of a
// stored response lets the backend reuse its prefix instead of re-reading the
// full history:
//
//	first, _ := provider.Response(ctx, &providers.ResponseRequest{
//	    Model: "o4-mini",
//	    Input: []providers.Message{{Role: "user", Content: problem}},
//	    Store: true,
//	})
//
//	second, _ := provider.Response(ctx, &providers.ResponseRequest{
//	    Model:              "o4-mini",
//	    Input:              []providers.Message{{Role: "user", Content: followUp}},
//	    PreviousResponseID: first.ResponseID,
//	    Store:              true,
//	})
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
// Streams request stream_options.include_usage, so the final chunk before the
// [DONE] sentinel carries the token usage for metering.
//
// # Compatible Backends
//
// Any server that speaks the OpenAI wire protocol works through this adapter;
// the generic package builds on it for self-hosted backends (vLLM, Ollama,
// LM Studio) where the Responses API is typically unavailable.
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
package openai
