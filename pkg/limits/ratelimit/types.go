package ratelimit

import (
	"fmt"
	"time"
)

// Strategy selects the behavior when a limit has no capacity left.
type Strategy string

const (
	// StrategyWait queues the caller until capacity frees up (or the
	// timeout / context expires).
	StrategyWait Strategy = "wait"

	// StrategyFail rejects the caller immediately.
	StrategyFail Strategy = "fail"
)

// maxSleepSlice caps each wait cycle so a cancelled context or an
// expiring timeout is noticed promptly even during long waits.
const maxSleepSlice = 500 * time.Millisecond

// ExceededError is returned by strategy "fail" when no capacity is
// available.
type ExceededError struct {
	// Key is the limiter bucket key
	Key string

	// Source names the mechanism that rejected ("token bucket", "window")
	Source string
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s) for %q", e.Source, e.Key)
}

// TimeoutError is returned by strategy "wait" when the caller's timeout
// elapses before capacity frees up.
type TimeoutError struct {
	// Key is the limiter bucket key
	Key string

	// Source names the mechanism that timed out ("token bucket", "window")
	Source string

	// Timeout is the wait budget that was exhausted
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rate limit timeout (%s) for %q after %s", e.Source, e.Key, e.Timeout)
}
