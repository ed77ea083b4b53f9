package api

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/engine"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/providers"
)

// HandleError converts various error types to OpenAI-compatible error
// responses. It maps validation errors, admission limiter rejections,
// engine failures and provider errors to appropriate HTTP status codes
// and error formats.
//
// Example usage:
//
//	if err != nil {
//	    errResp := HandleError(err)
//	    WriteErrorResponse(w, errResp)
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	// Check for RequestError (validation errors)
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	// Admission limiter rejections. Both are 429, with distinct codes so
	// clients can tell "over the limit" from "waited and gave up".
	var exceededErr *ratelimit.ExceededError
	if errors.As(err, &exceededErr) {
		return types.NewErrorResponse(
			exceededErr.Error(),
			types.ErrorTypeRateLimitExceeded,
			"",
			types.CodeRateLimitExceeded,
		)
	}

	var limitTimeoutErr *ratelimit.TimeoutError
	if errors.As(err, &limitTimeoutErr) {
		return types.NewErrorResponse(
			limitTimeoutErr.Error(),
			types.ErrorTypeRateLimitExceeded,
			"",
			types.CodeRateLimitTimeout,
		)
	}

	// Strict-mode planner failures wrap their parse cause, so this check
	// runs before the provider cascade.
	var agentErr *engine.AgentConfigError
	if errors.As(err, &agentErr) {
		return types.NewErrorResponse(
			agentErr.Error(),
			types.ErrorTypeBadGateway,
			"",
			types.CodeAgentConfigInvalid,
		)
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return types.NewProviderErrorResponse(
			authErr.Error(),
			types.ErrorTypeAuthentication,
			"authentication_failed",
			authErr.Provider,
		)
	}

	var rateLimitErr *providers.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return types.NewProviderErrorResponse(
			rateLimitErr.Error(),
			types.ErrorTypeRateLimitExceeded,
			types.CodeRateLimitExceeded,
			rateLimitErr.Provider,
		)
	}

	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Provider request timed out: %v", timeoutErr.Error()),
			types.ErrorTypeGatewayTimeout,
			types.CodeProviderTimeout,
			timeoutErr.Provider,
		)
	}

	var invalidErr *providers.InvalidRequestError
	if errors.As(err, &invalidErr) {
		return types.NewProviderErrorResponse(
			invalidErr.Error(),
			types.ErrorTypeInvalidRequest,
			types.CodeInvalidValue,
			invalidErr.Provider,
		)
	}

	var notFoundErr *providers.NotFoundError
	if errors.As(err, &notFoundErr) {
		resp := types.NewNotFoundError(notFoundErr.Error(), "model", types.CodeModelNotFound)
		resp.Error.Provider = notFoundErr.Provider
		return resp
	}

	var serverErr *providers.ServerError
	if errors.As(err, &serverErr) {
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Provider error (%s): %v", serverErr.Provider, serverErr.Message),
			types.ErrorTypeBadGateway,
			types.CodeProviderError,
			serverErr.Provider,
		)
	}

	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Failed to parse provider response: %v", parseErr.Error()),
			types.ErrorTypeBadGateway,
			types.CodeProviderError,
			parseErr.Provider,
		)
	}

	var streamErr *providers.StreamError
	if errors.As(err, &streamErr) {
		return types.NewProviderErrorResponse(
			streamErr.Error(),
			types.ErrorTypeBadGateway,
			types.CodeProviderError,
			streamErr.Provider,
		)
	}

	var providerErr *providers.ProviderError
	if errors.As(err, &providerErr) {
		return handleProviderError(providerErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewGatewayTimeoutError("Request timed out.")
	}

	// Default to internal server error for unknown errors
	return types.NewServerError(
		"An internal error occurred. Please try again later.",
	)
}

// handleProviderError converts a catch-all ProviderError to an OpenAI error
// response by mapping the upstream HTTP status code.
func handleProviderError(err *providers.ProviderError) *types.ErrorResponse {
	switch {
	case err.StatusCode >= 500:
		// 5xx errors are gateway errors (provider issues)
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Provider error (%s): %v", err.Provider, err.Message),
			types.ErrorTypeBadGateway,
			types.CodeProviderError,
			err.Provider,
		)
	case err.StatusCode == 429:
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Provider rate limit exceeded (%s)", err.Provider),
			types.ErrorTypeRateLimitExceeded,
			types.CodeRateLimitExceeded,
			err.Provider,
		)
	case err.StatusCode == 404:
		// Not found (usually model not found)
		resp := types.NewNotFoundError(
			fmt.Sprintf("Model not found (%s)", err.Provider),
			"model",
			types.CodeModelNotFound,
		)
		resp.Error.Provider = err.Provider
		return resp
	case err.StatusCode == 401 || err.StatusCode == 403:
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Provider authentication failed (%s)", err.Provider),
			types.ErrorTypeAuthentication,
			"authentication_failed",
			err.Provider,
		)
	case err.StatusCode >= 400:
		// Other 4xx errors are client errors
		return types.NewProviderErrorResponse(
			fmt.Sprintf("Invalid request to provider (%s): %v", err.Provider, err.Message),
			types.ErrorTypeInvalidRequest,
			types.CodeInvalidValue,
			err.Provider,
		)
	default:
		// Unknown status code, treat as internal error
		return types.NewServerError(
			fmt.Sprintf("Provider error (%s): %v", err.Provider, err.Message),
		)
	}
}
