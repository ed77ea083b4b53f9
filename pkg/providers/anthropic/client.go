package anthropic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/minerva/pkg/providers"
)

// Provider is the Anthropic provider adapter.
// It implements the providers.Provider interface for Anthropic's Messages API.
type Provider struct {
	*providers.HTTPProvider
}

const (
	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAnthropicVersion is the API version to use.
	DefaultAnthropicVersion = "2023-06-01"

	// DefaultTimeout bounds a single backend call. Extended thinking runs
	// long, so this is deliberately generous.
	DefaultTimeout = 10 * time.Minute

	// defaultMaxTokens is sent when the caller does not set a limit;
	// max_tokens is mandatory on the Messages API.
	defaultMaxTokens = 4096
)

// DefaultCapabilities describes what the Anthropic backend supports. The
// Messages API has no server-side response storage, so SupportsResponses
// stays false and callers fall back to full-history chat calls.
var DefaultCapabilities = providers.Capabilities{
	SupportsResponses: false,
	SupportsStreaming: true,
	SupportsVision:    true,
	SupportsThinking:  true,
	SupportsCaching:   true,
}

// NewProvider creates a new Anthropic provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	// Validate configuration
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
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
			Message:  "API key is required for Anthropic",
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

	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Chat sends a non-streaming request to the Messages API.
func (p *Provider) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.CallResult, error) {
	if err := p.validateChatRequest(req); err != nil {
		return nil, err
	}

	payload := buildMessagesPayload(req, false)
	url := fmt.Sprintf("%s/v1/messages", p.GetConfig().BaseURL)

	var resp MessagesResponse
	if err := p.DoJSONRequest(ctx, "POST", url, payload, &resp, p.authHeaders()); err != nil {
		return nil, err
	}

	result := transformMessagesResponse(&resp)

	slog.Debug("messages call succeeded",
		"provider", p.GetName(),
		"model", req.Model,
		"stop_reason", resp.StopReason,
	)

	return result, nil
}

// ChatStream sends a streaming request to the Messages API. The returned
// channel delivers text deltas, a final chunk carrying the stop reason and
// combined usage, and closes when the stream ends.
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

	payload := buildMessagesPayload(req, true)
	url := fmt.Sprintf("%s/v1/messages", p.GetConfig().BaseURL)
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

// Response is unsupported: the Messages API has no server-side response
// storage. Callers are expected to consult GetCapabilities first.
func (p *Provider) Response(ctx context.Context, req *providers.ResponseRequest) (*providers.CallResult, error) {
	return nil, &providers.InvalidRequestError{
		Provider: p.GetName(),
		Message:  "responses API is not supported by anthropic",
	}
}

// authHeaders returns the per-request headers for Anthropic authentication.
func (p *Provider) authHeaders() map[string]string {
	return map[string]string{
		"x-api-key":         p.GetConfig().APIKey,
		"anthropic-version": DefaultAnthropicVersion,
		"Content-Type":      "application/json",
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
