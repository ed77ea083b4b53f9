package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/config"
)

// Middleware is HTTP middleware for API key authentication. Keys are
// extracted from the configured sources in order; the first source that
// yields a value wins. Failures come back as a 401 in the OpenAI error
// shape.
type Middleware struct {
	validator *Validator
	sources   []KeySource
	logger    *slog.Logger
}

// NewMiddleware creates an authentication middleware.
func NewMiddleware(validator *Validator, sources []KeySource, logger *slog.Logger) *Middleware {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		validator: validator,
		sources:   sources,
		logger:    logger,
	}
}

// DefaultSources is the source list applied when the config names none:
// a standard Bearer token, then an X-API-Key header.
func DefaultSources() []KeySource {
	return []KeySource{
		{Type: "bearer"},
		{Type: "header", Name: "X-API-Key"},
	}
}

// SourcesFromConfig converts configured key sources to the middleware's
// form.
func SourcesFromConfig(cfgs []config.KeySourceConfig) []KeySource {
	sources := make([]KeySource, 0, len(cfgs))
	for _, c := range cfgs {
		sources = append(sources, KeySource{
			Type:   c.Type,
			Name:   c.Name,
			Scheme: c.Scheme,
		})
	}
	return sources
}

// Handle wraps an HTTP handler with API key authentication.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.extractKey(r)
		if err != nil {
			m.logger.Warn("missing API key",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeAuthError(w, "Missing API key.")
			return
		}

		info, err := m.validator.Validate(key)
		if err != nil {
			m.logger.Warn("invalid API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			writeAuthError(w, "Invalid API key.")
			return
		}

		m.logger.Debug("api key authenticated",
			"key_name", info.Name,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), keyInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractKey walks the configured sources and returns the first key
// found.
func (m *Middleware) extractKey(r *http.Request) (string, error) {
	for _, source := range m.sources {
		switch source.Type {
		case "bearer":
			value := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if strings.HasPrefix(value, prefix) {
				return strings.TrimPrefix(value, prefix), nil
			}

		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme != "" {
				prefix := source.Scheme + " "
				if strings.HasPrefix(value, prefix) {
					return strings.TrimPrefix(value, prefix), nil
				}
				continue
			}
			return value, nil
		}
	}

	return "", fmt.Errorf("no API key in request")
}

func writeAuthError(w http.ResponseWriter, message string) {
	errResp := types.NewErrorResponse(message, types.ErrorTypeAuthentication, "", "invalid_api_key")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errResp)
}

// Context key for authenticated key info.
type contextKey string

// #nosec G101 - context key constant, not a credential
const keyInfoKey contextKey = "api_key_info"

// GetKeyInfo retrieves the authenticated key info from the request
// context.
func GetKeyInfo(ctx context.Context) (*KeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey).(*KeyInfo)
	return info, ok
}
