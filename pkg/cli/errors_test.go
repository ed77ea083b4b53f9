package cli

import (
	"errors"
	"testing"
)

func TestConfigErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		want    string
	}{
		{
			name:    "with field",
			field:   "server.listen_address",
			message: "missing required field",
			want:    "config error in server.listen_address: missing required field",
		},
		{
			name:    "without field",
			field:   "",
			message: "failed to load config: open minerva.yaml: no such file",
			want:    "config error: failed to load config: open minerva.yaml: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.field, tt.message)
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCommandErrorMessage(t *testing.T) {
	underlying := errors.New("ledger store: disk full")
	err := NewCommandError("usage", underlying)

	want := "command usage failed: ledger store: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlying := errors.New("listen tcp: address already in use")
	err := NewCommandError("run", underlying)

	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see through CommandError")
	}
}
