package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Limiter is a keyed registry of rate limits.
//
// Keys are opaque strings; by convention handlers use "provider:model"
// so every engine stage and agent hitting the same upstream shares one
// budget. Each key can carry a token bucket (smoothing, bursts) and a
// fixed window (strict cap); Acquire checks the bucket first, then the
// window, so an admit spends from both.
//
// A single process-wide Limiter is shared across requests; it is safe
// for concurrent use.
type Limiter struct {
	mu        sync.RWMutex
	buckets   map[string]*TokenBucket
	windows   map[string]*FixedWindow
	onAcquire func(key string, waited time.Duration, err error)
}

// NewLimiter creates an empty limiter registry.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*TokenBucket),
		windows: make(map[string]*FixedWindow),
	}
}

// OnAcquire registers an observer invoked after every admission attempt
// with the key, the time spent waiting, and the rejection when one
// occurred. Lets callers feed metrics without the limiter knowing about a
// collector. Register before serving; the hook runs on the request path
// and must not block.
func (l *Limiter) OnAcquire(fn func(key string, waited time.Duration, err error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAcquire = fn
}

// MakeKey joins non-empty parts with ":". MakeKey("openai", "", "gpt-5")
// yields "openai:gpt-5".
func MakeKey(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ":")
}

// ConfigureBucket installs a token bucket for a key. Reconfiguration is
// idempotent: when the parameters are unchanged the existing bucket and
// its state are kept, so per-request configuration does not hand every
// request a fresh burst. Changed parameters replace the bucket.
func (l *Limiter) ConfigureBucket(key string, qps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.buckets[key]; ok && existing.matches(qps, burst) {
		return
	}

	l.buckets[key] = NewTokenBucket(qps, burst)
}

// ConfigureWindow installs a fixed window for a key. Same idempotency
// rule as ConfigureBucket.
func (l *Limiter) ConfigureWindow(key string, limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.windows[key]; ok && existing.matches(limit, window) {
		return
	}

	l.windows[key] = NewFixedWindow(limit, window)
}

// Acquire admits n units against the key's limits: token bucket first
// (smoothing), then fixed window (hard cap). A key with no configured
// limits admits immediately. The timeout bounds the total wait across
// both mechanisms; the context cancels waits regardless of strategy.
func (l *Limiter) Acquire(ctx context.Context, key string, n float64, timeout time.Duration, strategy Strategy) error {
	l.mu.RLock()
	bucket := l.buckets[key]
	window := l.windows[key]
	observe := l.onAcquire
	l.mu.RUnlock()

	start := time.Now()
	err := l.acquire(ctx, key, n, timeout, strategy, bucket, window, start)
	if observe != nil {
		observe(key, time.Since(start), err)
	}
	return err
}

func (l *Limiter) acquire(ctx context.Context, key string, n float64, timeout time.Duration, strategy Strategy, bucket *TokenBucket, window *FixedWindow, start time.Time) error {
	if bucket != nil {
		if err := bucket.Acquire(ctx, key, n, timeout, strategy); err != nil {
			return err
		}
	}

	if window != nil {
		// The window gets whatever wait budget the bucket left over
		remaining := timeout
		if timeout > 0 {
			remaining = timeout - time.Since(start)
			if remaining <= 0 {
				return &TimeoutError{Key: key, Source: "window", Timeout: timeout}
			}
		}
		if err := window.Acquire(ctx, key, remaining, strategy); err != nil {
			return err
		}
	}

	return nil
}

// Configured reports whether the key has any limit installed.
func (l *Limiter) Configured(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, hasBucket := l.buckets[key]
	_, hasWindow := l.windows[key]
	return hasBucket || hasWindow
}

// RemoveKey drops all limits for a key.
func (l *Limiter) RemoveKey(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	delete(l.windows, key)
}

// Keys returns all keys with at least one limit configured.
func (l *Limiter) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{}, len(l.buckets)+len(l.windows))
	for key := range l.buckets {
		seen[key] = struct{}{}
	}
	for key := range l.windows {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys
}

// Reset restores every bucket and window to full capacity. For tests.
func (l *Limiter) Reset() {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, bucket := range l.buckets {
		bucket.Reset()
	}
	for _, window := range l.windows {
		window.Reset()
	}
}
