package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/minerva/pkg/providers"
)

// Provider is the OpenAI provider adapter.
// It implements the providers.Provider interface for OpenAI's Chat
// Completions API and Responses API, and for any backend that speaks the
// same wire protocol.
type Provider struct {
	*providers.HTTPProvider
}

const (
	// DefaultBaseURL is the OpenAI API endpoint, including the /v1 prefix.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single backend call. Reasoning models routinely
	// run for minutes, so this is deliberately generous.
	DefaultTimeout = 10 * time.Minute
)

// DefaultCapabilities describes what the OpenAI backend supports.
var DefaultCapabilities = providers.Capabilities{
	SupportsResponses: true,
	SupportsStreaming: true,
	SupportsVision:    true,
	SupportsThinking:  true,
	SupportsCaching:   true,
}

// NewProvider creates a new OpenAI provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	// Validate configuration
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}

	// Set defaults if not provided
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	capabilities := DefaultCapabilities
	if config.Capabilities != nil {
		capabilities = *config.Capabilities
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config, capabilities),
	}

	slog.Info("OpenAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Chat sends a non-streaming chat completion request.
func (p *Provider) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.CallResult, error) {
	if err := p.validateChatRequest(req); err != nil {
		return nil, err
	}

	payload := buildChatPayload(req, false)
	url := fmt.Sprintf("%s/chat/completions", p.GetConfig().BaseURL)

	var completion ChatCompletion
	if err := p.DoJSONRequest(ctx, "POST", url, payload, &completion, p.authHeaders()); err != nil {
		return nil, err
	}

	result, err := transformChatResponse(&completion)
	if err != nil {
		return nil, &providers.ParseError{
			Provider: p.GetName(),
			Cause:    err,
		}
	}

	slog.Debug("chat completion succeeded",
		"provider", p.GetName(),
		"model", req.Model,
		"finish_reason", result.FinishReason,
	)

	return result, nil
}

// ChatStream sends a streaming chat completion request. The returned channel
// delivers content deltas, a final usage-bearing chunk when the backend
// reports one, and closes when the stream ends. A mid-stream failure is
// delivered as a chunk with Error set.
func (p *Provider) ChatStream(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.StreamChunk, error) {
	if !p.GetCapabilities().SupportsStreaming {
		return nil, &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "streaming is not supported by this provider",
		}
	}
	if err := p.validateChatRequest(req); err != nil {
		return nil, err
	}

	payload := buildChatPayload(req, true)
	url := fmt.Sprintf("%s/chat/completions", p.GetConfig().BaseURL)
	headers := p.authHeaders()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, p.HTTPProvider, url, payload, headers)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if err != nil {
				if err != io.EOF {
					select {
					case chunks <- &providers.StreamChunk{Error: err}:
					case <-ctx.Done():
					}
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// Response sends a request to the Responses API. Supports stored response
// chaining via PreviousResponseID and structured output via ResponseFormat.
func (p *Provider) Response(ctx context.Context, req *providers.ResponseRequest) (*providers.CallResult, error) {
	if !p.GetCapabilities().SupportsResponses {
		return nil, &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "responses API is not supported by this provider",
		}
	}
	if err := p.validateResponseRequest(req); err != nil {
		return nil, err
	}

	payload := buildResponsesPayload(req)
	url := fmt.Sprintf("%s/responses", p.GetConfig().BaseURL)

	var resp Response
	if err := p.DoJSONRequest(ctx, "POST", url, payload, &resp, p.authHeaders()); err != nil {
		return nil, err
	}

	result, err := transformResponseResult(p.GetName(), &resp, req.ResponseFormat != nil)
	if err != nil {
		return nil, err
	}

	slog.Debug("responses call succeeded",
		"provider", p.GetName(),
		"model", req.Model,
		"response_id", result.ResponseID,
		"stored", req.Store,
	)

	return result, nil
}

// authHeaders returns the per-request headers for OpenAI authentication.
func (p *Provider) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.GetConfig().APIKey,
		"Content-Type":  "application/json",
	}
}

// validateChatRequest validates a chat request before any network I/O.
func (p *Provider) validateChatRequest(req *providers.ChatRequest) error {
	if req == nil {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "request cannot be nil",
		}
	}
	if req.Model == "" {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "model is required",
		}
	}
	if len(req.Messages) == 0 {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "at least one message is required",
		}
	}
	return nil
}

// validateResponseRequest validates a Responses API request.
func (p *Provider) validateResponseRequest(req *providers.ResponseRequest) error {
	if req == nil {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "request cannot be nil",
		}
	}
	if req.Model == "" {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "model is required",
		}
	}
	if len(req.Input) == 0 {
		return &providers.InvalidRequestError{
			Provider: p.GetName(),
			Message:  "at least one input message is required",
		}
	}
	return nil
}
