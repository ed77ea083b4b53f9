package auth

// KeyInfo is one accepted API key. Name labels the key in logs and
// usage records; the key value itself must never be logged.
type KeyInfo struct {
	Key  string
	Name string
}

// KeySource defines one place to extract an API key from.
type KeySource struct {
	// Type is "header" or "bearer".
	Type string

	// Name is the header name for type "header" (e.g., "X-API-Key").
	Name string

	// Scheme is an optional scheme prefix stripped from the header value
	// for type "header".
	Scheme string
}
