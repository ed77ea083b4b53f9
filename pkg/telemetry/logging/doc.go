// Package logging provides the structured logger for the minerva
// service: log/slog with secret redaction and async buffered writes.
//
// # Usage
//
//	logger, err := logging.FromConfig(&cfg.Logging, os.Stdout)
//	if err != nil { ... }
//	defer logger.Shutdown()
//
//	logger.Info("request accepted",
//	    "request_id", reqID,
//	    "api_key", key, // masked: sensitive key name
//	)
//
// Packages that take a plain *slog.Logger receive logger.Slog().
//
// # Redaction
//
// When logging.redact_pii is enabled, values logged through the
// wrapper are scrubbed: provider API keys (sk-..., sk-ant-...),
// Authorization bearer tokens, inline base64 image payloads, email
// addresses and password assignments. Values under sensitive key
// names (token, secret, api_key, ...) are masked outright. Custom
// patterns come from logging.redact_patterns in the configuration.
//
// # Buffering
//
// With logging.buffer_size > 0, encoded records are queued and
// written by a background goroutine; a full queue drops the record
// and counts it instead of blocking the request path. Shutdown
// drains the queue.
package logging
