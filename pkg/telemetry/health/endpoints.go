package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"mercator-hq/minerva/pkg/limits/ratelimit"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string `json:"version"`

	// Commit is the git commit hash.
	Commit string `json:"commit"`

	// BuildTime is when the binary was built.
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build.
	GoVersion string `json:"go_version"`
}

// LivenessHandler serves the /health endpoint: a fast check that the
// process is alive.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2026-08-25T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Liveness(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}

// ReadinessHandler serves the /ready endpoint, running every registered
// component check.
//
// Returns 200 when ready, 503 when any component is unhealthy:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "providers": {"status": "unhealthy", "message": "no healthy providers"},
//	        "cache": {"status": "ok", "duration_ms": 0.4}
//	    },
//	    "timestamp": "2026-08-25T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Readiness(r.Context())

		w.Header().Set("Content-Type", "application/json")

		if status.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}

// VersionHandler serves build information.
//
// Example response:
//
//	{"version": "1.0.0", "commit": "abc123", "build_time": "2026-08-20T00:00:00Z", "go_version": "go1.25.0"}
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(info)
		}
	}
}

// RateLimited guards a probe handler with a token bucket so aggressive
// orchestrator probing cannot occupy the server. Over-limit requests get
// 429 with a Retry-After hint.
func RateLimited(handler http.HandlerFunc, requestsPerSecond float64) http.HandlerFunc {
	if requestsPerSecond <= 0 {
		return handler
	}

	limiter := ratelimit.NewLimiter()
	const key = "health-probe"
	limiter.ConfigureBucket(key, requestsPerSecond, int(requestsPerSecond)+1)

	return func(w http.ResponseWriter, r *http.Request) {
		if err := limiter.Acquire(r.Context(), key, 1, 0, ratelimit.StrategyFail); err != nil {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		handler(w, r)
	}
}
