// Package generic implements a generic OpenAI-compatible provider adapter.
//
// This package provides an implementation of the providers.Provider interface
// for any backend that implements the OpenAI API format. It supports:
//
//   - Local LLM servers (Ollama, LM Studio, vLLM, FastChat)
//   - Custom OpenAI-compatible endpoints
//   - Self-hosted LLM APIs
//
// # Supported Platforms
//
// The generic adapter works with any OpenAI-compatible API, including:
//
//   - Ollama (http://localhost:11434/v1)
//   - LM Studio (http://localhost:1234/v1)
//   - vLLM (http://localhost:8000/v1)
//   - FastChat (http://localhost:8000/v1)
//   - Text Generation Inference (http://localhost:8080/v1)
//   - LocalAI (http://localhost:8080/v1)
//
// # Basic Usage
//
//	config := providers.ProviderConfig{
//	    Name:    "ollama",
//	    Type:    "generic",
//	    BaseURL: "http://localhost:11434/v1",
//	    // API key is optional for local providers
//	}
//
//	provider, err := generic.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	req := &providers.ChatRequest{
//	    Model: "llama3",
//	    Messages: []providers.Message{
//	        {Role: "user", Content: "Hello!"},
//	    },
//	}
//
//	result, err := provider.Chat(context.Background(), req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Content)
//
// # Capabilities
//
// Unless the config declares otherwise, the adapter assumes the backend
// supports streaming chat but not the Responses API, vision, or prompt
// caching. Reasoning engines consult GetCapabilities and fall back to
// full-history chat against such backends. Override per deployment:
//
//	config := providers.ProviderConfig{
//	    Name:    "vllm",
//	    BaseURL: "http://localhost:8000/v1",
//	    Capabilities: &providers.Capabilities{
//	        SupportsStreaming: true,
//	        SupportsVision:    true,
//	    },
//	}
//
// # Configuration Differences
//
// Compared to cloud providers, local backends typically:
//
//   - Don't require API keys (a placeholder is set by default)
//   - Need longer timeouts (inference can be slow)
//   - Have fewer retry attempts (no point retrying local failures)
//   - Use smaller connection pools (single instance)
//
// # Compatibility Notes
//
// Not all OpenAI-compatible servers implement the full API:
//
//   - Streaming may not be supported
//   - Token usage may not be reported
//   - Some parameters may be ignored
//
// The adapter works as long as the server implements the basic chat
// completions endpoint with the OpenAI request/response format. Extra
// backend-specific parameters pass through via ChatRequest.Extra.
package generic
