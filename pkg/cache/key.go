package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"mercator-hq/minerva/pkg/providers"
)

// KeyError reports a cache key computation failure. Key inputs are
// produced by the engines from already-serialized request data, so a
// KeyError indicates a programming error rather than a runtime condition.
type KeyError struct {
	// Stage is the computation stage that failed ("normalize", "serialize")
	Stage string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("cache key %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// ComputeKey derives a deterministic cache key from the prompt prefix
// components. The key is the SHA-256 hex digest of the key-sorted JSON
// serialization of the normalized component tuple: two calls with
// semantically equal inputs produce identical keys across restarts.
//
// Base64 data-URL images embedded in the history are replaced by a short
// content hash before serialization so multi-megabyte payloads don't blow
// up key computation while distinct images still produce distinct keys.
func ComputeKey(provider, model, system, knowledge string, history []providers.Message, params map[string]interface{}) (string, error) {
	normalizedHistory, err := normalizeHistory(history)
	if err != nil {
		return "", &KeyError{Stage: "normalize", Err: err}
	}

	var normalizedParams interface{} = map[string]interface{}{}
	if params != nil {
		normalizedParams = normalizeValue(params)
	}

	components := map[string]interface{}{
		"provider":  provider,
		"model":     model,
		"system":    system,
		"knowledge": knowledge,
		"history":   normalizedHistory,
		"params":    normalizedParams,
	}

	// encoding/json sorts map keys, giving canonical bytes
	data, err := json.Marshal(components)
	if err != nil {
		return "", &KeyError{Stage: "serialize", Err: err}
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeHistory converts messages to their generic JSON form and
// normalizes the result. The JSON round trip collapses typed content
// values into plain maps and slices so normalization sees one shape.
func normalizeHistory(history []providers.Message) (interface{}, error) {
	if len(history) == 0 {
		return []interface{}{}, nil
	}

	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize history: %w", err)
	}

	var generic []interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to round-trip history: %w", err)
	}

	return normalizeValue(generic), nil
}

// normalizeValue prepares a value for cache key serialization.
// Scalars pass through, containers recurse, and anything else is
// stringified. Image URL entries get special handling (see hashImageURL).
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val

	case map[string]interface{}:
		normalized := make(map[string]interface{}, len(val))
		for k, item := range val {
			if k == "image_url" || k == "url" {
				if url, ok := imageURL(item); ok {
					normalized[k] = hashImageURL(url)
					continue
				}
			}
			normalized[k] = normalizeValue(item)
		}
		return normalized

	case []interface{}:
		normalized := make([]interface{}, len(val))
		for i, item := range val {
			normalized[i] = normalizeValue(item)
		}
		return normalized

	default:
		return fmt.Sprintf("%v", val)
	}
}

// imageURL extracts the URL from an image_url value, which is either a
// bare string or an object with a "url" field.
func imageURL(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case map[string]interface{}:
		url, _ := val["url"].(string)
		return url, true
	default:
		return "", false
	}
}

// hashImageURL replaces base64 data-URL images with a short content hash.
// Plain URLs pass through unchanged: they are already short and stable.
func hashImageURL(url string) string {
	if !strings.HasPrefix(url, "data:image") {
		return url
	}

	sum := sha256.Sum256([]byte(url))
	return "image_hash:" + hex.EncodeToString(sum[:])[:16]
}
