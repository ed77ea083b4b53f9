package auth

import (
	"log/slog"
	"testing"

	"mercator-hq/minerva/pkg/config"
)

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		keys      []KeyInfo
		testKey   string
		wantError bool
		wantName  string
	}{
		{
			name:     "valid key",
			keys:     []KeyInfo{{Key: "sk-valid-key", Name: "ci"}},
			testKey:  "sk-valid-key",
			wantName: "ci",
		},
		{
			name:      "unknown key",
			keys:      []KeyInfo{{Key: "sk-valid-key", Name: "ci"}},
			testKey:   "sk-wrong-key",
			wantError: true,
		},
		{
			name:      "empty key",
			keys:      []KeyInfo{{Key: "sk-valid-key", Name: "ci"}},
			testKey:   "",
			wantError: true,
		},
		{
			name:      "prefix of a valid key",
			keys:      []KeyInfo{{Key: "sk-valid-key", Name: "ci"}},
			testKey:   "sk-valid",
			wantError: true,
		},
		{
			name: "second of several keys",
			keys: []KeyInfo{
				{Key: "sk-key-one", Name: "one"},
				{Key: "sk-key-two", Name: "two"},
			},
			testKey:  "sk-key-two",
			wantName: "two",
		},
		{
			name:      "no keys configured",
			keys:      nil,
			testKey:   "sk-anything",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.keys)

			info, err := v.Validate(tt.testKey)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if info.Name != tt.wantName {
				t.Errorf("expected key name %q, got %q", tt.wantName, info.Name)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("MINERVA_TEST_KEY", "sk-from-env")

	cfg := &config.AuthConfig{
		Enabled: true,
		Keys: []config.APIKeyConfig{
			{Key: "sk-literal", Name: "literal"},
			{Env: "MINERVA_TEST_KEY", Name: "from-env"},
			{Env: "MINERVA_TEST_KEY_UNSET", Name: "missing"},
			{Name: "empty-entry"},
		},
	}

	v := FromConfig(cfg, slog.Default())

	if v.Len() != 2 {
		t.Fatalf("expected 2 usable keys, got %d", v.Len())
	}

	info, err := v.Validate("sk-from-env")
	if err != nil {
		t.Fatalf("env-sourced key rejected: %v", err)
	}
	if info.Name != "from-env" {
		t.Errorf("expected name from-env, got %q", info.Name)
	}

	if _, err := v.Validate("sk-anything"); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestFromConfig_DefaultNames(t *testing.T) {
	cfg := &config.AuthConfig{
		Keys: []config.APIKeyConfig{{Key: "sk-unnamed"}},
	}

	v := FromConfig(cfg, nil)

	info, err := v.Validate("sk-unnamed")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if info.Name != "key-0" {
		t.Errorf("expected generated name key-0, got %q", info.Name)
	}
}

func BenchmarkValidator_Validate(b *testing.B) {
	keys := make([]KeyInfo, 8)
	for i := range keys {
		keys[i] = KeyInfo{Key: "sk-bench-key-" + string(rune('a'+i)), Name: "bench"}
	}
	v := NewValidator(keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Validate("sk-bench-key-h")
	}
}
