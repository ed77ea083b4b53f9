package providers

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kind constants. Every backend failure maps into exactly one kind;
// callers translate kinds into HTTP statuses with StatusForKind.
const (
	KindAuth           = "auth"
	KindRateLimit      = "rate_limit"
	KindTimeout        = "timeout"
	KindInvalidRequest = "invalid_request"
	KindNotFound       = "not_found"
	KindServer         = "server"
	KindProvider       = "provider"
)

// ProviderError represents a backend failure that does not fit a more
// specific kind. It also serves as the catch-all for unexpected statuses.
type ProviderError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the upstream HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Details carries surplus fields from the backend error payload
	Details map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure.
// This occurs when the provider rejects the API key (HTTP 401 or 403).
type AuthError struct {
	// Provider is the name of the provider that rejected authentication
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError represents upstream throttling (HTTP 429).
// It includes the retry-after duration if provided by the provider.
type RateLimitError struct {
	// Provider is the name of the provider that rate limited the request
	Provider string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// TimeoutError represents a request deadline exceeded against the backend.
// Distinct from ratelimit.TimeoutExceededError, which is a limiter wait
// running out before any request is sent.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// InvalidRequestError represents a request the backend rejected as malformed
// (HTTP 400), or a capability violation detected before any network call,
// such as Response on a provider without SupportsResponses.
type InvalidRequestError struct {
	// Provider is the name of the provider
	Provider string

	// Message describes what is invalid
	Message string

	// Details carries surplus fields from the backend error payload
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("provider %q invalid request: %s", e.Provider, e.Message)
}

// NotFoundError represents an unknown model or resource (HTTP 404).
type NotFoundError struct {
	// Provider is the name of the provider
	Provider string

	// Resource is the requested model or resource identifier
	Resource string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("provider %q: %q not found: %s", e.Provider, e.Resource, e.Message)
	}
	return fmt.Sprintf("provider %q resource not found: %s", e.Provider, e.Message)
}

// ServerError represents an upstream 5xx after retries are exhausted.
type ServerError struct {
	// Provider is the name of the provider
	Provider string

	// StatusCode is the upstream HTTP status code
	StatusCode int

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("provider %q server error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// ParseError represents a response parsing failure.
// This occurs when the provider returns a malformed response.
type ParseError struct {
	// Provider is the name of the provider that returned the malformed response
	Provider string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError represents an error that occurred during streaming.
// This is sent through the stream channel to indicate an error.
type StreamError struct {
	// Provider is the name of the provider where the error occurred
	Provider string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ConfigError represents a provider configuration error.
// This occurs when the provider configuration is invalid.
type ConfigError struct {
	// Provider is the name of the provider with invalid configuration
	Provider string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// KindOf maps an error produced by this package into its taxonomy kind.
// Errors from other packages map to KindProvider.
func KindOf(err error) string {
	var (
		authErr    *AuthError
		rateErr    *RateLimitError
		timeoutErr *TimeoutError
		invalidErr *InvalidRequestError
		nfErr      *NotFoundError
		serverErr  *ServerError
	)
	switch {
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &invalidErr):
		return KindInvalidRequest
	case errors.As(err, &nfErr):
		return KindNotFound
	case errors.As(err, &serverErr):
		return KindServer
	default:
		return KindProvider
	}
}

// StatusForKind returns the canonical HTTP status for a taxonomy kind.
func StatusForKind(kind string) int {
	switch kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// ProviderOf extracts the provider name from a taxonomy error, or "" when
// the error carries none.
func ProviderOf(err error) string {
	var (
		provErr    *ProviderError
		authErr    *AuthError
		rateErr    *RateLimitError
		timeoutErr *TimeoutError
		invalidErr *InvalidRequestError
		nfErr      *NotFoundError
		serverErr  *ServerError
		parseErr   *ParseError
		streamErr  *StreamError
	)
	switch {
	case errors.As(err, &provErr):
		return provErr.Provider
	case errors.As(err, &authErr):
		return authErr.Provider
	case errors.As(err, &rateErr):
		return rateErr.Provider
	case errors.As(err, &timeoutErr):
		return timeoutErr.Provider
	case errors.As(err, &invalidErr):
		return invalidErr.Provider
	case errors.As(err, &nfErr):
		return nfErr.Provider
	case errors.As(err, &serverErr):
		return serverErr.Provider
	case errors.As(err, &parseErr):
		return parseErr.Provider
	case errors.As(err, &streamErr):
		return streamErr.Provider
	default:
		return ""
	}
}

// IsRetriableKind reports whether engines may classify the kind as transient
// in logs and reports. Engines never retry; the adapters own retry policy.
func IsRetriableKind(kind string) bool {
	return kind == KindRateLimit || kind == KindTimeout || kind == KindServer || kind == KindProvider
}
