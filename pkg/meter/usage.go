package meter

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UsageStats aggregates token counts reported by provider APIs.
//
// Counting follows the OpenAI usage schema:
//
//   - CachedTokens is a subset of InputTokens: cached prompt tokens are
//     already included in the input count.
//   - ReasoningTokens is a subset of OutputTokens: reasoning tokens are
//     already included in the output count.
//
// Uncached input is therefore InputTokens-CachedTokens and regular output
// is OutputTokens-ReasoningTokens.
type UsageStats struct {
	// InputTokens is the number of prompt tokens, including cached ones.
	InputTokens int64 `json:"input_tokens"`

	// OutputTokens is the number of completion tokens, including reasoning ones.
	OutputTokens int64 `json:"output_tokens"`

	// CachedTokens is the cached subset of InputTokens.
	CachedTokens int64 `json:"cached_tokens"`

	// ReasoningTokens is the reasoning subset of OutputTokens.
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// TotalTokens returns input plus output tokens. Cached and reasoning tokens
// are subsets of those counts and are not added again.
func (u UsageStats) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another sample into u.
func (u *UsageStats) Add(other UsageStats) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedTokens += other.CachedTokens
	u.ReasoningTokens += other.ReasoningTokens
}

// Validate checks the subset assumptions the cost model relies on. Sums of
// valid samples stay valid, so checking each recorded sample covers the
// accumulated totals too.
func (u UsageStats) Validate() error {
	var errs []error
	if u.CachedTokens > u.InputTokens {
		errs = append(errs, fmt.Errorf(
			"cached_tokens (%d) exceeds input_tokens (%d): cached tokens must be a subset of input tokens",
			u.CachedTokens, u.InputTokens))
	}
	if u.ReasoningTokens > u.OutputTokens {
		errs = append(errs, fmt.Errorf(
			"reasoning_tokens (%d) exceeds output_tokens (%d): reasoning tokens must be a subset of output tokens",
			u.ReasoningTokens, u.OutputTokens))
	}
	return errors.Join(errs...)
}

// MarshalJSON emits the raw counts plus the derived total_tokens field.
func (u UsageStats) MarshalJSON() ([]byte, error) {
	type raw UsageStats
	return json.Marshal(struct {
		raw
		TotalTokens int64 `json:"total_tokens"`
	}{raw(u), u.TotalTokens()})
}

// ExtractUsage pulls token counts out of a raw provider usage payload.
// Both the Responses naming (input_tokens, output_tokens and their _details
// maps) and the chat completions naming (prompt_tokens, completion_tokens,
// prompt_tokens_details, completion_tokens_details) are understood; for each
// counter the first non-zero alias wins. Missing or malformed fields count
// as zero.
func ExtractUsage(usage map[string]interface{}) UsageStats {
	return UsageStats{
		InputTokens:  tokenCount(usage, "input_tokens", "prompt_tokens"),
		OutputTokens: tokenCount(usage, "output_tokens", "completion_tokens"),
		CachedTokens: detailCount(usage,
			[]string{"input_tokens_details", "prompt_tokens_details"}, "cached_tokens"),
		ReasoningTokens: detailCount(usage,
			[]string{"output_tokens_details", "completion_tokens_details"}, "reasoning_tokens"),
	}
}

// tokenCount returns the first non-zero count among the aliased keys.
func tokenCount(usage map[string]interface{}, keys ...string) int64 {
	for _, key := range keys {
		if n := asInt64(usage[key]); n != 0 {
			return n
		}
	}
	return 0
}

// detailCount reads a nested counter such as input_tokens_details.cached_tokens,
// trying each container alias in order.
func detailCount(usage map[string]interface{}, containers []string, key string) int64 {
	for _, container := range containers {
		details, ok := usage[container].(map[string]interface{})
		if !ok {
			continue
		}
		if n := asInt64(details[key]); n != 0 {
			return n
		}
	}
	return 0
}

// asInt64 coerces the numeric types that appear in decoded JSON payloads.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	return 0
}
