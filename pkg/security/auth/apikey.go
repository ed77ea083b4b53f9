package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/minerva/pkg/config"
)

// Validator checks presented API keys against the configured set.
//
// Lookups compare every configured key with subtle.ConstantTimeCompare
// rather than a map probe, so response timing does not leak how much of
// a guessed key matched. The key set is small (operator-configured), so
// the linear scan costs nothing in practice.
type Validator struct {
	keys []KeyInfo
}

// NewValidator creates a validator over a fixed key set.
func NewValidator(keys []KeyInfo) *Validator {
	return &Validator{keys: keys}
}

// FromConfig builds a validator from the auth section. Env-sourced keys
// are resolved here; entries whose variable is unset are skipped with a
// warning so one missing secret does not take the service down.
func FromConfig(cfg *config.AuthConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	keys := make([]KeyInfo, 0, len(cfg.Keys))
	for i, kc := range cfg.Keys {
		value := kc.Key
		if kc.Env != "" {
			value = os.Getenv(kc.Env)
			if value == "" {
				logger.Warn("api key environment variable is unset, skipping key",
					"env", kc.Env,
					"name", kc.Name,
				)
				continue
			}
		}
		if value == "" {
			logger.Warn("api key entry has neither key nor env, skipping",
				"index", i,
				"name", kc.Name,
			)
			continue
		}

		name := kc.Name
		if name == "" {
			name = fmt.Sprintf("key-%d", i)
		}
		keys = append(keys, KeyInfo{Key: value, Name: name})
	}

	return NewValidator(keys)
}

// Validate checks a presented key and returns its info on a match.
func (v *Validator) Validate(key string) (*KeyInfo, error) {
	if key == "" {
		return nil, fmt.Errorf("empty API key")
	}

	presented := []byte(key)
	var matched *KeyInfo
	for i := range v.keys {
		// Scan the whole set even after a match to keep timing uniform.
		if subtle.ConstantTimeCompare(presented, []byte(v.keys[i].Key)) == 1 && matched == nil {
			matched = &v.keys[i]
		}
	}
	if matched == nil {
		return nil, fmt.Errorf("invalid API key")
	}
	return matched, nil
}

// Len reports how many keys are configured.
func (v *Validator) Len() int {
	return len(v.keys)
}
