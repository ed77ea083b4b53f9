package middleware

// contextKey is a private key type so context values cannot collide with
// other packages.
type contextKey string

const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// KeyNameKey stores the name of the API key that authenticated the
	// request, when auth is enabled.
	KeyNameKey contextKey = "api_key_name"
)
