// Package health provides liveness and readiness probes for the Minerva
// service.
//
// Liveness (/health) answers immediately: a process that can serve the
// endpoint is alive. Readiness (/ready) runs registered component checks
// concurrently with a per-check timeout and degrades to 503 when any
// component reports unhealthy, so load balancers stop routing to an
// instance whose providers or storage are down.
//
// Usage:
//
//	checker := health.New(5 * time.Second)
//	checker.Register("providers", func(ctx context.Context) error {
//	    if len(registry.Healthy()) == 0 {
//	        return errors.New("no healthy providers")
//	    }
//	    return nil
//	})
//
//	mux.HandleFunc("GET /health", checker.LivenessHandler())
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
//
// Probe endpoints can be wrapped with RateLimited to bound how much
// serving capacity orchestrator probing may consume.
package health
