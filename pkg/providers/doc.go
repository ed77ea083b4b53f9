// Package providers implements a unified abstraction layer for LLM backends.
//
// # Overview
//
// The providers package gives the reasoning engines one contract over
// heterogeneous LLM backends (OpenAI, Anthropic, OpenAI-compatible local
// servers). It normalizes requests and responses, declares per-backend
// capability flags, maps upstream failures into a unified error taxonomy,
// manages connections, and performs health checks.
//
// # Architecture
//
// The package is organized into several layers:
//
//  1. Provider Interface - Chat, ChatStream, and Response entry points plus lifecycle
//  2. Base HTTP Provider - Shared HTTP client logic (connection pooling, retries, taxonomy mapping)
//  3. Provider Adapters - Backend-specific implementations (openai, anthropic, generic)
//  4. Registry - Resolves logical model ids to provider instances (subpackage registry)
//
// # Capability Negotiation
//
// Every provider declares immutable Capabilities. Callers consult them before
// selecting an entry point; calling Response on a provider whose capabilities
// lack SupportsResponses fails with an InvalidRequestError before any network
// I/O:
//
//	if provider.GetCapabilities().SupportsResponses {
//	    res, err = provider.Response(ctx, &providers.ResponseRequest{
//	        Model: "gpt-4o",
//	        Input: messages,
//	        Store: true,
//	        PreviousResponseID: prevID,
//	    })
//	} else {
//	    res, err = provider.Chat(ctx, &providers.ChatRequest{Model: "gpt-4o", Messages: messages})
//	}
//
// # Basic Usage
//
// Create a single provider:
//
//	config := providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	    Timeout: 60 * time.Second,
//	}
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	res, err := provider.Chat(context.Background(), &providers.ChatRequest{
//	    Model: "gpt-4o",
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: "Hello!"},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Content)
//
// # Streaming
//
// ChatStream returns a single-pass channel of delta chunks. The final chunk
// may carry a usage payload with no delta; mid-stream failures arrive as a
// chunk with Error set:
//
//	chunks, err := provider.ChatStream(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for chunk := range chunks {
//	    if chunk.Error != nil {
//	        log.Fatal(chunk.Error)
//	    }
//	    fmt.Print(chunk.Delta)
//	}
//
// # Error Taxonomy
//
// Every backend failure maps into exactly one kind with a canonical HTTP
// status (see KindOf and StatusForKind):
//
//   - AuthError: credential rejected (401)
//   - RateLimitError: upstream throttling (429), Retry-After honored
//   - TimeoutError: deadline exceeded (504)
//   - InvalidRequestError: malformed parameters or capability violation (400)
//   - NotFoundError: unknown model or resource (404)
//   - ServerError: upstream 5xx (502)
//   - ProviderError: any other backend failure (502)
//
// Engines never retry; the adapters own bounded retry with exponential
// backoff (MaxRetries).
//
// # Output Normalization
//
// Multi-part outputs (text, tool invocations, tool results) normalize into
// canonical typed items via NormalizeOutputItems; alternative field names
// (call_id, arguments, function.arguments) fold into the canonical names
// with surplus fields preserved under "details".
//
// # Thread Safety
//
// All provider implementations are safe for concurrent use. A single
// instance is shared across requests for the life of the process.
package providers
