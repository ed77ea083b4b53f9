package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mercator-hq/minerva/pkg/api/types"
)

// Timeout bounds the handling of a single request end to end. When the
// deadline passes before the handler finishes, the request context is
// cancelled and a 504 in the OpenAI error shape is written. A zero or
// negative duration disables the middleware.
//
// Engine runs are long by design; configure this well above the expected
// run time or leave it at zero and rely on provider timeouts.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{w: w}
			done := make(chan struct{})

			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() != context.DeadlineExceeded {
					return
				}
				slog.WarnContext(r.Context(), "request timed out",
					"request_id", GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout.String(),
				)
				if tw.markTimedOut() {
					errResp := types.NewGatewayTimeoutError(
						"Request timed out before completing.",
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_ = json.NewEncoder(w).Encode(errResp)
				}
			}
		})
	}
}

// timeoutWriter serializes handler writes against the timeout path so
// exactly one of them produces the response. After the deadline fires
// the handler's writes are discarded.
type timeoutWriter struct {
	w http.ResponseWriter

	mu       sync.Mutex
	wrote    bool
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.w.Header()
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.wrote = true
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.wrote = true
	return tw.w.Write(b)
}

// Flush forwards to the underlying writer so SSE streaming survives the
// wrapper.
func (tw *timeoutWriter) Flush() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	if f, ok := tw.w.(http.Flusher); ok {
		f.Flush()
	}
}

// markTimedOut flips the writer into the discard state. It reports true
// when the handler had not written anything yet, meaning the timeout
// path owns the response.
func (tw *timeoutWriter) markTimedOut() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
	return !tw.wrote
}
