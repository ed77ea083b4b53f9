package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"mercator-hq/minerva/pkg/api/types"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// AuthorizationHeader is the HTTP header for API key authentication.
	AuthorizationHeader = "Authorization"

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// validatable is any request body that can check its own fields.
type validatable interface {
	Validate() error
}

// decodeBody reads, decodes and validates an HTTP request body into dst.
// The body is limited to MaxRequestBodySize to prevent memory exhaustion;
// JSON and validation failures come back as *RequestError so handlers can
// map them to the OpenAI error shape without inspecting the cause.
func decodeBody(r *http.Request, dst validatable) error {
	limitedReader := io.LimitReader(r.Body, MaxRequestBodySize)

	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if len(body) >= MaxRequestBodySize {
		return &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	if err := dst.Validate(); err != nil {
		if valErr, ok := err.(*types.ValidationError); ok {
			return &RequestError{
				Message: valErr.Message,
				Code:    types.CodeInvalidValue,
				Param:   valErr.Field,
			}
		}
		return err
	}

	return nil
}

// ParseDeepThinkRequest parses an HTTP request body into a DeepThinkRequest.
//
// Example usage:
//
//	req, err := ParseDeepThinkRequest(r)
//	if err != nil {
//	    // Handle validation error
//	    return err
//	}
func ParseDeepThinkRequest(r *http.Request) (*types.DeepThinkRequest, error) {
	var req types.DeepThinkRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ParseUltraThinkRequest parses an HTTP request body into an UltraThinkRequest.
func ParseUltraThinkRequest(r *http.Request) (*types.UltraThinkRequest, error) {
	var req types.UltraThinkRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ParseChatCompletionRequest parses an HTTP request body into a
// ChatCompletionRequest.
func ParseChatCompletionRequest(r *http.Request) (*types.ChatCompletionRequest, error) {
	var req types.ChatCompletionRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ParseResponsesRequest parses an HTTP request body into a ResponsesRequest.
func ParseResponsesRequest(r *http.Request) (*types.ResponsesRequest, error) {
	var req types.ResponsesRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ExtractRequestID extracts the request ID from the X-Request-ID header.
// If the header is not present, it returns an empty string.
//
// This allows clients to provide their own request IDs for correlation.
// If not provided, the middleware will generate one.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
