// Package ratelimit provides keyed rate limiting for upstream LLM calls.
//
// # Overview
//
// Reasoning engines fan out many provider calls per user request, so the
// service throttles at the provider:model level rather than per HTTP
// request. The package implements two mechanisms, composed per key:
//
//   - Token Bucket: smooth average rate with burst capacity
//   - Fixed Window: strict cap per window ("at most N calls per minute")
//
// # Usage
//
//	limiter := ratelimit.NewLimiter()
//	limiter.ConfigureBucket("openai:gpt-5", 2.0, 4) // 2 calls/sec, burst 4
//	limiter.ConfigureWindow("openai:gpt-5", 60, time.Minute)
//
//	err := limiter.Acquire(ctx, "openai:gpt-5", 1, 30*time.Second, ratelimit.StrategyWait)
//	if err != nil {
//	    // TimeoutError, ExceededError, or ctx.Err()
//	}
//
// # Strategies
//
// StrategyWait queues the caller, sleeping in capped slices and
// re-checking, until admitted or the wait budget runs out (TimeoutError).
// StrategyFail rejects immediately with ExceededError when no capacity is
// available. Both honor context cancellation.
//
// # Ordering
//
// Acquire spends from the token bucket first (smoothing), then from the
// window (hard cap). Admission is not strictly FIFO: a waiter that
// releases the state lock to sleep can lose freshly refilled tokens to a
// later arrival.
//
// # Reconfiguration
//
// ConfigureBucket and ConfigureWindow are idempotent: repeated calls with
// unchanged parameters keep the existing state, so handlers can configure
// limits from each request without handing every request a fresh burst.
//
// # Thread Safety
//
// All types are thread-safe. State locks are never held while sleeping.
package ratelimit
