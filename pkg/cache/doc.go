// Package cache provides the prompt prefix cache.
//
// # Overview
//
// Reasoning engines send the same prompt prefix (system prompt, knowledge,
// history) on every iteration of a refine loop. Providers with a Responses
// API let callers chain requests through a server-side conversation handle
// instead; this package maps a deterministic hash of the prefix to the
// last response id so a new run over the same prefix picks up the chain.
//
//   - ComputeKey: canonical SHA-256 key over the normalized prefix tuple
//   - Cache: response-id lookup/store with per-entry TTL
//   - Store: pluggable persistence (memory, SQLite, Redis)
//   - Sweeper: cron-scheduled expiry cleanup
//
// # Usage
//
//	store, err := cache.NewSQLiteStore("/var/lib/minerva/cache.db")
//	if err != nil {
//	    return err
//	}
//	c := cache.New(cache.Options{Store: store, Enabled: true})
//	defer c.Close()
//
//	key, err := cache.ComputeKey("openai", "gpt-5", system, knowledge, history, params)
//	if err != nil {
//	    return err
//	}
//	if id := c.GetResponseID(ctx, key); id != "" {
//	    req.PreviousResponseID = id
//	}
//	// ... after the call:
//	c.SetResponseID(ctx, key, result.ResponseID)
//
// # Key Normalization
//
// Keys must be identical across process restarts and instances, so the
// key is a SHA-256 digest of key-sorted JSON rather than anything
// involving map iteration order. Base64 data-URL images are replaced by a
// 16-character content hash before serialization; hashing megabytes of
// image data into the key bytes would be wasteful and the short hash
// preserves uniqueness.
//
// # Failure Semantics
//
// A stale response id is not detected here: the provider rejects it and
// the engine evicts the entry via Delete. Store read/write failures
// degrade to cache misses; the cache never fails a request.
//
// # Thread Safety
//
// All stores are thread-safe. Cache is safe for concurrent use.
package cache
