package logging

import (
	"strings"
	"testing"

	"mercator-hq/minerva/pkg/config"
)

func TestNewRedactor(t *testing.T) {
	tests := []struct {
		name         string
		custom       []config.RedactPattern
		wantPatterns int
	}{
		{
			name:         "default patterns only",
			custom:       nil,
			wantPatterns: len(defaultPatterns),
		},
		{
			name: "with custom pattern",
			custom: []config.RedactPattern{
				{Name: "tenant_token", Pattern: "tok_[a-zA-Z0-9]{16}", Replacement: "tok_***"},
			},
			wantPatterns: len(defaultPatterns) + 1,
		},
		{
			name: "invalid custom pattern skipped",
			custom: []config.RedactPattern{
				{Name: "broken", Pattern: "[unclosed", Replacement: "***"},
			},
			wantPatterns: len(defaultPatterns),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRedactor(tt.custom)
			if len(r.patterns) != tt.wantPatterns {
				t.Errorf("got %d patterns, want %d", len(r.patterns), tt.wantPatterns)
			}
		})
	}
}

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor(nil)

	tests := []struct {
		name     string
		in       string
		mustLose string
	}{
		{
			name:     "openai key",
			in:       "failed call with sk-abcdef1234567890",
			mustLose: "sk-abcdef1234567890",
		},
		{
			name:     "anthropic key",
			in:       "key sk-ant-api03-zzzzyyyy rejected",
			mustLose: "sk-ant-api03-zzzzyyyy",
		},
		{
			name:     "api_key assignment",
			in:       "api_key: abc123def456",
			mustLose: "abc123def456",
		},
		{
			name:     "bearer token",
			in:       "header Authorization: Bearer eyJhbGciOi.payload",
			mustLose: "eyJhbGciOi",
		},
		{
			name:     "base64 image payload",
			in:       "content part data:image/png;base64,iVBORw0KGgoAAAANSUhEUg trimmed",
			mustLose: "iVBORw0KGgo",
		},
		{
			name:     "email",
			in:       "reply to ops@example.com",
			mustLose: "ops@example.com",
		},
		{
			name:     "password assignment",
			in:       "password=hunter2",
			mustLose: "hunter2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.RedactString(tt.in)
			if strings.Contains(out, tt.mustLose) {
				t.Errorf("RedactString(%q) = %q, still contains %q", tt.in, out, tt.mustLose)
			}
		})
	}
}

func TestRedactor_RedactString_PassThrough(t *testing.T) {
	r := NewRedactor(nil)
	in := "iteration 3 verified solution x=5 in 120ms"
	if out := r.RedactString(in); out != in {
		t.Errorf("benign string changed: %q -> %q", in, out)
	}
}

func TestRedactor_RedactArgs(t *testing.T) {
	r := NewRedactor(nil)

	args := r.RedactArgs(
		"request_id", "req-1",
		"api_key", "sk-longsecretkey",
		"authorization", "Bearer abc",
		"note", "contact admin@example.com",
		"count", 7,
	)

	if args[1] != "req-1" {
		t.Errorf("benign value changed: %v", args[1])
	}
	if s := args[3].(string); strings.Contains(s, "longsecretkey") {
		t.Errorf("api_key not masked: %q", s)
	}
	if s := args[5].(string); strings.Contains(s, "abc") {
		t.Errorf("authorization not masked: %q", s)
	}
	if s := args[7].(string); strings.Contains(s, "admin@example.com") {
		t.Errorf("email in value not redacted: %q", s)
	}
	if args[9] != 7 {
		t.Errorf("non-string value changed: %v", args[9])
	}
}

func TestRedactor_RedactArgs_OddLength(t *testing.T) {
	r := NewRedactor(nil)
	args := r.RedactArgs("dangling")
	if len(args) != 1 || args[0] != "dangling" {
		t.Errorf("odd-length args mishandled: %v", args)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"Authorization", true},
		{"client_secret", true},
		{"access_token", true},
		{"private_key_pem", true},
		{"request_id", false},
		{"model", false},
		{"tokens", false}, // token counts are not secrets
	}
	for _, tt := range tests {
		if got := isSensitiveKey(tt.key); got != tt.want {
			t.Errorf("isSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"short string", "abc", "***"},
		{"long string keeps prefix", "sk-abcdef", "sk-a***"},
		{"empty string", "", ""},
		{"non-string", 42, "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskValue(tt.in); got != tt.want {
				t.Errorf("maskValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk-abcdefghij", "sk-a***"},
		{"abcd", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := RedactAPIKey(tt.in); got != tt.want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactor_CustomPatterns(t *testing.T) {
	r := NewRedactor([]config.RedactPattern{
		{Name: "session", Pattern: `sess_[0-9a-f]{8}`, Replacement: "sess_***"},
	})

	out := r.RedactString("resume sess_deadbeef now")
	if strings.Contains(out, "sess_deadbeef") {
		t.Errorf("custom pattern not applied: %q", out)
	}
	if !strings.Contains(out, "sess_***") {
		t.Errorf("replacement missing: %q", out)
	}
}

func TestIsSensitiveKey_CountsAreNot(t *testing.T) {
	// Usage counters must survive redaction untouched.
	r := NewRedactor(nil)
	args := r.RedactArgs("input_tokens", 1200, "output_tokens", 640)
	if args[1] != 1200 || args[3] != 640 {
		t.Errorf("usage counters altered: %v", args)
	}
}
