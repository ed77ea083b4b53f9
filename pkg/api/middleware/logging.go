package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.status = code
		sw.written = true
		sw.ResponseWriter.WriteHeader(code)
	}
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so SSE streaming survives the
// wrapper.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging emits one structured log line per completed request: method,
// path, status, latency, request ID and client details. 5xx responses
// log at error level and 4xx at warn so failures stand out without
// grepping.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, start)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			logger.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", GetRequestID(ctx),
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(sw, r.WithContext(ctx))

			latency := time.Since(start)

			level := slog.LevelInfo
			switch {
			case sw.status >= 500:
				level = slog.LevelError
			case sw.status >= 400:
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"latency_ms", latency.Milliseconds(),
				"request_id", GetRequestID(ctx),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// GetStartTime extracts the request start time from the context. Returns
// the zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if start, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return start
	}
	return time.Time{}
}
