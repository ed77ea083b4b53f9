package types

// ErrorResponse represents an OpenAI-compatible error response.
// This is returned for all error conditions so existing OpenAI SDKs and
// tools can consume Minerva endpoints without translation.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	// Possible values: "invalid_request_error", "authentication_error",
	// "permission_denied", "not_found", "rate_limit_exceeded",
	// "server_error", "bad_gateway", "service_unavailable", "gateway_timeout".
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Provider names the upstream provider when the error originated
	// there, so callers can tell a Minerva rejection from a relayed one.
	Provider string `json:"provider,omitempty"`
}

// Error type constants matching the OpenAI API error taxonomy.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeAuthentication indicates an authentication failure (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypePermissionDenied indicates an authorization failure (403).
	ErrorTypePermissionDenied = "permission_denied"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeRateLimitExceeded indicates too many requests (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates a provider error (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeServiceUnavailable indicates temporary unavailability (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeGatewayTimeout indicates a provider timeout (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants for common error scenarios.
const (
	// CodeMissingField indicates a required field is missing.
	CodeMissingField = "missing_field"

	// CodeInvalidValue indicates a field has an invalid value.
	CodeInvalidValue = "invalid_value"

	// CodeInvalidJSON indicates the request body is not valid JSON.
	CodeInvalidJSON = "invalid_json"

	// CodeModelNotFound indicates the requested model is not configured.
	CodeModelNotFound = "model_not_found"

	// CodeProviderError indicates an error from the LLM provider.
	CodeProviderError = "provider_error"

	// CodeProviderTimeout indicates the provider request timed out.
	CodeProviderTimeout = "provider_timeout"

	// CodeStreamingUnsupported indicates the provider cannot stream.
	CodeStreamingUnsupported = "streaming_unsupported"

	// CodeResponsesUnsupported indicates the provider lacks the Responses API.
	CodeResponsesUnsupported = "responses_unsupported"

	// CodeRateLimitExceeded indicates the admission limiter rejected the
	// request outright (fail strategy).
	CodeRateLimitExceeded = "rate_limit_exceeded"

	// CodeRateLimitTimeout indicates the request waited for capacity and
	// ran out of time (wait strategy).
	CodeRateLimitTimeout = "rate_limit_timeout"

	// CodeAgentConfigInvalid indicates the agent-config planner produced
	// unparseable output while strict mode was on.
	CodeAgentConfigInvalid = "agent_config_invalid"

	// CodeRequestTooLarge indicates the request payload is too large.
	CodeRequestTooLarge = "request_too_large"

	// CodeInternalError indicates an internal server error.
	CodeInternalError = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewProviderErrorResponse creates an error response attributed to an
// upstream provider.
func NewProviderErrorResponse(message, errorType, code, provider string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message:  message,
			Type:     errorType,
			Code:     code,
			Provider: provider,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewNotFoundError creates an error response for unknown resources (404).
func NewNotFoundError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeNotFound, param, code)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError creates an error response for provider errors (502).
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeProviderError)
}

// NewServiceUnavailableError creates an error response for temporary unavailability (503).
func NewServiceUnavailableError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", CodeProviderError)
}

// NewGatewayTimeoutError creates an error response for provider timeouts (504).
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeProviderTimeout)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return 400
	case ErrorTypeAuthentication:
		return 401
	case ErrorTypePermissionDenied:
		return 403
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeRateLimitExceeded:
		return 429
	case ErrorTypeServerError:
		return 500
	case ErrorTypeBadGateway:
		return 502
	case ErrorTypeServiceUnavailable:
		return 503
	case ErrorTypeGatewayTimeout:
		return 504
	default:
		return 500
	}
}
