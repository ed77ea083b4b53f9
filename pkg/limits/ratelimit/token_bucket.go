package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket allows bursts up to its capacity while maintaining an
// average rate over time. Tokens refill continuously at qps tokens per
// second; each admission consumes one or more tokens.
//
// This implementation uses monotonic time (time.Since) to avoid clock
// skew issues.
//
// # Algorithm
//
//  1. Refill: tokens = min(burst, tokens + elapsed × qps)
//  2. If enough tokens: consume and admit
//  3. Otherwise strategy "fail" rejects; strategy "wait" sleeps the time
//     until enough tokens exist (capped per cycle) and re-checks
//
// The state mutex is released before every sleep: a waiter never blocks
// other goroutines from taking tokens that refill in the meantime.
// Wakeup order is not FIFO; a long-waiting caller can lose a refill to a
// fresh one.
//
// # Thread Safety
//
// TokenBucket is thread-safe using sync.Mutex for state access.
type TokenBucket struct {
	qps    float64   // Tokens added per second
	burst  float64   // Maximum tokens in bucket
	tokens float64   // Current available tokens
	last   time.Time // Last refill time
	mu     sync.Mutex
}

// NewTokenBucket creates a token bucket that starts full.
//
// Parameters:
//   - qps: Tokens added per second (average rate). Zero means no refill:
//     the initial burst is all the bucket ever admits.
//   - burst: Maximum number of tokens (burst size)
//
// Example:
//
//	// 10 admissions/sec average, burst up to 20
//	bucket := NewTokenBucket(10, 20)
func NewTokenBucket(qps float64, burst int) *TokenBucket {
	return &TokenBucket{
		qps:    qps,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Acquire consumes n tokens, waiting per the strategy when the bucket is
// short. A non-positive n returns immediately. Timeout <= 0 means no
// wait budget; the context still bounds the total wait.
func (tb *TokenBucket) Acquire(ctx context.Context, key string, n float64, timeout time.Duration, strategy Strategy) error {
	if n <= 0 {
		return nil
	}

	start := time.Now()

	for {
		tb.mu.Lock()
		tb.refillLocked()

		if tb.tokens >= n {
			tb.tokens -= n
			tb.mu.Unlock()
			return nil
		}

		needed := n - tb.tokens
		tb.mu.Unlock()

		if strategy == StrategyFail {
			return &ExceededError{Key: key, Source: "token bucket"}
		}

		// Seconds until enough tokens refill. With qps 0 this is
		// effectively infinite: the timeout (or context) is the only
		// way out.
		rate := tb.qps
		if rate <= 0 {
			rate = 1e-9
		}
		waitSeconds := needed / rate

		if timeout > 0 && time.Since(start).Seconds()+waitSeconds > timeout.Seconds() {
			return &TimeoutError{Key: key, Source: "token bucket", Timeout: timeout}
		}

		if err := sleepSlice(ctx, waitSeconds); err != nil {
			return err
		}
	}
}

// TryAcquire consumes n tokens without waiting. Returns true when the
// tokens were available.
func (tb *TokenBucket) TryAcquire(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}

	return false
}

// Remaining returns the number of tokens currently available, after
// refilling for elapsed time.
func (tb *TokenBucket) Remaining() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Reset refills the bucket to capacity. Primarily for tests.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.burst
	tb.last = time.Now()
}

// matches reports whether the bucket was built with these parameters.
// Used for idempotent reconfiguration.
func (tb *TokenBucket) matches(qps float64, burst int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return tb.qps == qps && tb.burst == float64(burst)
}

// refillLocked adds tokens for the time elapsed since the last refill.
// Caller must hold the lock.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.last).Seconds()

	if elapsed > 0 {
		tb.tokens += elapsed * tb.qps
		if tb.tokens > tb.burst {
			tb.tokens = tb.burst
		}
		tb.last = now
	}
}

// sleepSlice sleeps waitSeconds capped at maxSleepSlice, honoring
// context cancellation. The cap keeps the re-check loop responsive; the
// caller loops until admitted or out of budget.
func sleepSlice(ctx context.Context, waitSeconds float64) error {
	// Convert only when under the cap: a near-infinite waitSeconds would
	// overflow the Duration conversion.
	sleep := maxSleepSlice
	if waitSeconds < maxSleepSlice.Seconds() {
		sleep = time.Duration(waitSeconds * float64(time.Second))
		if sleep <= 0 {
			sleep = time.Millisecond
		}
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
