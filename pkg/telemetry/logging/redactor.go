package logging

import (
	"fmt"
	"regexp"
	"strings"

	"mercator-hq/minerva/pkg/config"
)

// Redactor scrubs secrets and oversized payloads from log values. The
// built-in patterns cover what an LLM gateway actually logs: provider
// API keys, bearer tokens, inline base64 image payloads and email
// addresses. Custom patterns from configuration are applied after the
// built-ins.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternDataURL     = "data_url"
	PatternEmail       = "email"
	PatternPassword    = "password"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	// Provider API keys: OpenAI sk-..., Anthropic sk-ant-..., and
	// generic api_key=... assignments.
	{PatternAPIKey, `(sk-[a-zA-Z0-9_-]{8,}|api[-_]?key[-_:=]\s*[a-zA-Z0-9_-]+)`, "sk-***"},

	// Authorization header values.
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},

	// Inline base64 images blow up log lines; keep the media type,
	// drop the payload.
	{PatternDataURL, `data:image/[a-zA-Z.+-]+;base64,[a-zA-Z0-9+/=]+`, "data:image/***"},

	// Email addresses.
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"},

	// password=... assignments.
	{PatternPassword, `(password|passwd|pwd)[:=]\s*\S+`, "$1: ***"},
}

// NewRedactor creates a Redactor with the built-in patterns plus the
// given custom ones. Custom patterns that fail to compile are skipped.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactArgs scrubs alternating key/value log arguments. Values under
// sensitive key names are masked outright; string values additionally
// go through the pattern pass.
func (r *Redactor) RedactArgs(args ...any) []any {
	if len(args) == 0 {
		return args
	}
	out := make([]any, len(args))
	copy(out, args)
	for i := 1; i < len(out); i += 2 {
		if key, ok := out[i-1].(string); ok && isSensitiveKey(key) {
			out[i] = maskValue(out[i])
			continue
		}
		if s, ok := out[i].(string); ok {
			out[i] = r.RedactString(s)
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	// Usage counters (input_tokens, cached_tokens, ...) are not secrets.
	k = strings.ReplaceAll(k, "tokens", "")
	for _, s := range []string{
		"password", "passwd", "pwd",
		"secret", "token", "api_key", "apikey",
		"authorization", "credential", "private_key",
	} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// maskValue hides a sensitive value, keeping a short prefix of longer
// strings so operators can tell keys apart.
func maskValue(value any) any {
	switch v := value.(type) {
	case string:
		if v == "" {
			return ""
		}
		if len(v) <= 4 {
			return "***"
		}
		return v[:4] + "***"
	case fmt.Stringer:
		return "***"
	default:
		return "***"
	}
}

// RedactAPIKey masks an API key, keeping the first four characters.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
