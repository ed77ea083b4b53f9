package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// HTTPProvider is the base implementation for HTTP-based provider adapters.
// It provides connection pooling, retry logic, timeout handling, health
// monitoring, and the mapping from upstream HTTP statuses into the unified
// error taxonomy.
//
// Concrete provider implementations (OpenAI, Anthropic, generic) embed this
// struct and implement the Provider interface methods on top of it.
type HTTPProvider struct {
	// config contains the provider configuration
	config ProviderConfig

	// capabilities are the immutable feature flags for this backend
	capabilities Capabilities

	// client is the HTTP client with connection pooling
	client *http.Client

	// health tracks the provider's health status
	health ProviderHealth

	// healthMu protects concurrent access to health status
	healthMu sync.RWMutex

	// stopHealthCheck is closed to signal the health checker to stop
	stopHealthCheck chan struct{}

	// healthCheckStopped is closed when the health checker has stopped
	healthCheckStopped chan struct{}
}

// NewHTTPProvider creates a new base HTTP provider with connection pooling.
func NewHTTPProvider(config ProviderConfig, capabilities Capabilities) *HTTPProvider {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableCompression:  false,
		// Enable HTTP/2
		ForceAttemptHTTP2: true,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	p := &HTTPProvider{
		config:       config,
		capabilities: capabilities,
		client:       client,
		health: ProviderHealth{
			IsHealthy:             true, // Start optimistic
			LastCheck:             time.Now(),
			ConsecutiveFailures:   0,
			LastSuccessfulRequest: time.Now(),
			TotalRequests:         0,
			FailedRequests:        0,
		},
		stopHealthCheck:    make(chan struct{}),
		healthCheckStopped: make(chan struct{}),
	}

	return p
}

// GetName returns the provider's configured name.
func (p *HTTPProvider) GetName() string {
	return p.config.Name
}

// GetType returns the provider's type.
func (p *HTTPProvider) GetType() string {
	return p.config.Type
}

// GetConfig returns the provider's configuration.
func (p *HTTPProvider) GetConfig() ProviderConfig {
	return p.config
}

// GetCapabilities returns the immutable capability flags.
func (p *HTTPProvider) GetCapabilities() Capabilities {
	return p.capabilities
}

// IsHealthy returns the current health status.
func (p *HTTPProvider) IsHealthy() bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health.IsHealthy
}

// GetHealth returns detailed health information.
func (p *HTTPProvider) GetHealth() ProviderHealth {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health
}

// updateHealth updates the provider's health status.
// This is called after each health check or request.
func (p *HTTPProvider) updateHealth(success bool, err error) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	p.health.LastCheck = time.Now()

	if success {
		p.health.IsHealthy = true
		p.health.ConsecutiveFailures = 0
		p.health.LastError = nil
		p.health.LastSuccessfulRequest = time.Now()
	} else {
		p.health.ConsecutiveFailures++
		p.health.LastError = err

		// Mark unhealthy after 3 consecutive failures (circuit breaker)
		if p.health.ConsecutiveFailures >= 3 {
			p.health.IsHealthy = false
			slog.Warn("provider marked unhealthy",
				"provider", p.config.Name,
				"consecutive_failures", p.health.ConsecutiveFailures,
				"error", err,
			)
		}
	}
}

// recordRequest records request metrics.
func (p *HTTPProvider) recordRequest(success bool) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	p.health.TotalRequests++
	if !success {
		p.health.FailedRequests++
	}
}

// DoRequest performs an HTTP request with retry logic and timeout handling.
// Transient failures (network errors, 5xx, 429) are retried with exponential
// backoff up to MaxRetries; non-retriable statuses return immediately with
// the matching taxonomy error:
//
//	401/403 -> AuthError
//	429     -> RateLimitError (after retries, with Retry-After honored)
//	400     -> InvalidRequestError
//	404     -> NotFoundError
//	5xx     -> ServerError (after retries)
func (p *HTTPProvider) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying request",
				"provider", p.config.Name,
				"attempt", attempt,
				"max_retries", p.config.MaxRetries,
				"backoff", backoff,
			)

			// Wait with backoff (respect context cancellation)
			select {
			case <-ctx.Done():
				return nil, p.mapContextErr(ctx)
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		slog.Debug("sending request to provider",
			"provider", p.config.Name,
			"method", method,
			"url", url,
		)

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			p.recordRequest(false)

			if ctx.Err() != nil {
				// Cancelled or deadline exceeded - don't retry
				return nil, p.mapContextErr(ctx)
			}

			// Network error - retry
			slog.Warn("request failed, will retry",
				"provider", p.config.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			p.recordRequest(true)
			p.updateHealth(true, nil)
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		message, details := extractErrorMessage(errorBody)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			// Authentication error - don't retry
			p.recordRequest(false)
			p.updateHealth(false, fmt.Errorf("authentication failed"))
			return nil, &AuthError{
				Provider: p.config.Name,
				Message:  message,
			}

		case http.StatusTooManyRequests:
			// Upstream throttling - retry; surfaced with Retry-After when exhausted
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			lastErr = &RateLimitError{
				Provider:   p.config.Name,
				RetryAfter: retryAfter,
				Message:    message,
			}
			p.recordRequest(false)

			slog.Warn("request rate limited, will retry",
				"provider", p.config.Name,
				"retry_after", retryAfter,
				"attempt", attempt+1,
			)

		case http.StatusBadRequest:
			// Malformed parameters - don't retry
			p.recordRequest(false)
			return nil, &InvalidRequestError{
				Provider: p.config.Name,
				Message:  message,
				Details:  details,
			}

		case http.StatusNotFound:
			// Unknown model or resource - don't retry
			p.recordRequest(false)
			return nil, &NotFoundError{
				Provider: p.config.Name,
				Message:  message,
			}

		default:
			// Server error (5xx) or other status - retry
			lastErr = &ServerError{
				Provider:   p.config.Name,
				StatusCode: resp.StatusCode,
				Message:    message,
			}
			p.recordRequest(false)

			slog.Warn("request returned error status, will retry",
				"provider", p.config.Name,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	// All retries exhausted
	p.updateHealth(false, lastErr)
	if lastErr == nil {
		lastErr = &ProviderError{Provider: p.config.Name, Message: "request failed"}
	}
	if !isTaxonomyError(lastErr) {
		lastErr = &ProviderError{
			Provider: p.config.Name,
			Message:  "request failed after retries",
			Cause:    lastErr,
		}
	}
	return nil, lastErr
}

// DoJSONRequest performs a JSON request and decodes the response.
func (p *HTTPProvider) DoJSONRequest(ctx context.Context, method, url string, reqBody interface{}, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := p.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: p.config.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    p.config.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// DoStreamRequest performs a request whose response body is consumed as a
// stream by the caller. The caller owns resp.Body and must close it.
func (p *HTTPProvider) DoStreamRequest(ctx context.Context, method, url string, reqBody interface{}, headers map[string]string) (*http.Response, error) {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "text/event-stream"
	}
	return p.DoRequest(ctx, method, url, bodyBytes, headers)
}

// Close closes the HTTP client and stops the health checker.
func (p *HTTPProvider) Close() error {
	close(p.stopHealthCheck)

	// Wait for health checker to stop (with timeout)
	select {
	case <-p.healthCheckStopped:
		slog.Debug("health checker stopped", "provider", p.config.Name)
	case <-time.After(5 * time.Second):
		slog.Warn("health checker did not stop in time", "provider", p.config.Name)
	}

	p.client.CloseIdleConnections()

	slog.Info("provider closed", "provider", p.config.Name)
	return nil
}

// mapContextErr distinguishes a deadline from a plain cancellation.
// Cancellation propagates untouched so engines can unwind without reporting
// a backend timeout.
func (p *HTTPProvider) mapContextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{
			Provider: p.config.Name,
			Timeout:  p.config.Timeout,
		}
	}
	return ctx.Err()
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	// Try parsing as seconds
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

// extractErrorMessage digs the human-readable message out of a backend error
// body ({"error": {"message": ...}} or {"error": "..."} shapes) and returns
// any surplus fields for loss-free passthrough. Unparseable bodies come back
// verbatim.
func extractErrorMessage(body []byte) (string, map[string]interface{}) {
	if len(body) == 0 {
		return "", nil
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return string(body), nil
	}

	switch errVal := envelope["error"].(type) {
	case string:
		return errVal, nil
	case map[string]interface{}:
		msg, _ := errVal["message"].(string)
		details := make(map[string]interface{})
		for k, v := range errVal {
			if k != "message" {
				details[k] = v
			}
		}
		if len(details) == 0 {
			details = nil
		}
		if msg == "" {
			msg = string(body)
		}
		return msg, details
	default:
		if msg, ok := envelope["message"].(string); ok {
			return msg, nil
		}
		return string(body), nil
	}
}

// isTaxonomyError reports whether err is already one of the unified kinds.
func isTaxonomyError(err error) bool {
	var (
		provErr    *ProviderError
		authErr    *AuthError
		rateErr    *RateLimitError
		timeoutErr *TimeoutError
		invalidErr *InvalidRequestError
		nfErr      *NotFoundError
		serverErr  *ServerError
	)
	return errors.As(err, &provErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &rateErr) ||
		errors.As(err, &timeoutErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &nfErr) ||
		errors.As(err, &serverErr)
}
