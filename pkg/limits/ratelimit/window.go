package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow admits at most limit events per window.
//
// Unlike the token bucket there is no smoothing: the counter resets at
// the window boundary, so up to 2×limit events can land around a reset.
// It exists as a strict cap layered behind the bucket ("at most N calls
// per minute to this upstream") where that spike is acceptable.
//
// # Thread Safety
//
// FixedWindow is thread-safe using sync.Mutex; the lock is released
// before every wait sleep.
type FixedWindow struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	mu          sync.Mutex
}

// NewFixedWindow creates a fixed window admitting limit events per
// window duration.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
	}
}

// Acquire admits one event, waiting per the strategy when the current
// window is full. Timeout <= 0 means no wait budget; the context still
// bounds the total wait.
func (fw *FixedWindow) Acquire(ctx context.Context, key string, timeout time.Duration, strategy Strategy) error {
	start := time.Now()

	for {
		fw.mu.Lock()
		now := time.Now()

		if now.Sub(fw.windowStart) >= fw.window {
			fw.windowStart = now
			fw.count = 0
		}

		if fw.count < fw.limit {
			fw.count++
			fw.mu.Unlock()
			return nil
		}

		remaining := fw.window - now.Sub(fw.windowStart)
		fw.mu.Unlock()

		if strategy == StrategyFail {
			return &ExceededError{Key: key, Source: "window"}
		}

		if remaining < 0 {
			remaining = 0
		}

		if timeout > 0 && time.Since(start)+remaining > timeout {
			return &TimeoutError{Key: key, Source: "window", Timeout: timeout}
		}

		if err := sleepSlice(ctx, remaining.Seconds()); err != nil {
			return err
		}
	}
}

// Remaining returns how many admits are left in the current window.
func (fw *FixedWindow) Remaining() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if time.Since(fw.windowStart) >= fw.window {
		return fw.limit
	}

	remaining := fw.limit - fw.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the window counter. Primarily for tests.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.count = 0
	fw.windowStart = time.Now()
}

// matches reports whether the window was built with these parameters.
// Used for idempotent reconfiguration.
func (fw *FixedWindow) matches(limit int, window time.Duration) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.limit == limit && fw.window == window
}
