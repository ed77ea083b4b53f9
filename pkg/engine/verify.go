package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

// VerificationRecord is one verifier outcome, appended to a run's
// verification log in call order.
type VerificationRecord struct {
	// Verdict is "pass", "fail" or "unsure"
	Verdict string `json:"verdict"`

	// Confidence is the verifier's self-reported confidence in [0,1];
	// out-of-range values are dropped rather than clamped
	Confidence *float64 `json:"confidence,omitempty"`

	// Reasons supports the verdict
	Reasons []string `json:"reasons,omitempty"`

	// Issues lists concrete problems found in the solution
	Issues []string `json:"issues,omitempty"`

	// Arith carries the arithmetic sanity check outcome when the
	// parallel check ran
	Arith *TriState `json:"arith,omitempty"`

	// Error is set when the verifier output could not be interpreted
	Error string `json:"error,omitempty"`
}

// errUnparseableVerification marks verifier output that failed schema
// validation. The record still counts as a failed verification.
const errUnparseableVerification = "verification_output_unparseable"

// verificationResponseFormat is the structured-output request for the
// verifier, in the flat Responses API shape.
func verificationResponseFormat() map[string]interface{} {
	return map[string]interface{}{
		"type": "json_schema",
		"name": "verification_result",
		"schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"verdict":    map[string]interface{}{"type": "string", "enum": []string{"pass", "fail", "unsure"}},
				"confidence": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
				"reasons":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"issues":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required":             []string{"verdict"},
			"additionalProperties": false,
		},
		"strict": false,
	}
}

// verificationJSONGuard is appended to the user content on the chat
// fallback path for providers without structured outputs.
const verificationJSONGuard = "Return ONLY a single-line minified JSON object matching the schema: " +
	`{"verdict":"pass|fail|unsure","confidence":0.0,"reasons":[],"issues":[]}. ` +
	"No extra text or explanation."

// VerifyOptions configures a standalone verification call.
type VerifyOptions struct {
	Provider providers.Provider
	Model    string

	// Problem and Solution are the texts under review.
	Problem  string
	Solution string

	// LLMParams passes sampling parameters through to the provider.
	LLMParams map[string]interface{}

	// Meter receives the verification call's usage. Required.
	Meter *meter.TokenMeter

	// Limiter, LimitTimeout and LimitStrategy gate the call when set.
	// LimitKey pins the admission key; empty derives provider:model.
	Limiter       *ratelimit.Limiter
	LimitTimeout  time.Duration
	LimitStrategy ratelimit.Strategy
	LimitKey      string

	// Throttle spaces calls when no limiter is injected.
	Throttle time.Duration
}

// Verify checks a solution against its problem with a single LLM call.
// Providers with structured outputs get the verification_result schema;
// others get a strict JSON instruction and the text is decoded. Output
// that fails validation yields a fail record with Error set rather than
// a Go error; only transport and metering failures return an error.
func Verify(ctx context.Context, opts VerifyOptions) (VerificationRecord, error) {
	m := opts.Meter
	if m == nil {
		m = meter.New(nil, meter.Options{})
	}
	caller := &llmCaller{
		provider:      opts.Provider,
		model:         opts.Model,
		params:        opts.LLMParams,
		meter:         m,
		limiter:       opts.Limiter,
		limitTimeout:  opts.LimitTimeout,
		limitStrategy: opts.LimitStrategy,
		limitKey:      opts.LimitKey,
		throttle:      opts.Throttle,
	}
	return verifyWithLLM(ctx, caller, opts.Problem, opts.Solution)
}

// verifyWithLLM performs the verification call through the shared caller
// and validates the structured output.
func verifyWithLLM(ctx context.Context, caller *llmCaller, problem, solution string) (VerificationRecord, error) {
	userContent := fmt.Sprintf("Problem:\n%s\n\nSolution:\n%s", problem, solution)

	var (
		result *providers.CallResult
		err    error
	)
	if caller.provider.GetCapabilities().SupportsResponses {
		result, err = caller.do(ctx, callSpec{
			stage: StageVerification,
			messages: []providers.Message{
				providers.SystemMessage(deepThinkVerifyPrompt),
				providers.UserMessage(userContent),
			},
			responseFormat:  verificationResponseFormat(),
			preferResponses: true,
		})
	} else {
		result, err = caller.do(ctx, callSpec{
			stage: StageVerification,
			messages: []providers.Message{
				providers.SystemMessage(deepThinkVerifyPrompt),
				providers.UserMessage(userContent + "\n\n" + verificationJSONGuard),
			},
		})
	}
	if err != nil {
		return VerificationRecord{}, err
	}

	candidate := result.OutputParsed
	if candidate == nil {
		var decoded map[string]interface{}
		if jsonErr := json.Unmarshal([]byte(result.Content), &decoded); jsonErr == nil {
			candidate = decoded
		}
	}

	record, ok := validateVerification(candidate)
	if !ok {
		return VerificationRecord{Verdict: "fail", Error: errUnparseableVerification}, nil
	}
	return record, nil
}

// validateVerification normalizes raw verifier output into a record.
// The verdict must be one of the allowed values after trimming and
// lowercasing; everything else is optional and dropped when malformed.
func validateVerification(obj map[string]interface{}) (VerificationRecord, bool) {
	if obj == nil {
		return VerificationRecord{}, false
	}

	verdict := strings.ToLower(strings.TrimSpace(providers.Stringify(obj["verdict"])))
	switch verdict {
	case "pass", "fail", "unsure":
	default:
		return VerificationRecord{}, false
	}

	record := VerificationRecord{Verdict: verdict}

	if conf, ok := toFloat(obj["confidence"]); ok && conf >= 0 && conf <= 1 {
		record.Confidence = &conf
	}
	record.Reasons = scalarStrings(obj["reasons"])
	record.Issues = scalarStrings(obj["issues"])

	return record, true
}

// scalarStrings keeps the string and numeric entries of a decoded JSON
// array, stringified. Nested values are discarded.
func scalarStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		switch item.(type) {
		case string, float64, int, int64:
			out = append(out, providers.Stringify(item))
		}
	}
	return out
}

// verdictPasses reports whether a verification record counts toward the
// quorum. The verdict text is accepted when it contains "yes" or "pass";
// a false arithmetic check vetoes regardless of the verdict.
func verdictPasses(record VerificationRecord) bool {
	verdict := strings.ToLower(record.Verdict)
	good := strings.Contains(verdict, "yes") || strings.Contains(verdict, "pass")
	if record.Arith != nil && *record.Arith == TriFalse {
		return false
	}
	return good
}

// verifySolution runs the LLM verification, optionally racing the
// arithmetic sanity check alongside it, and reports whether the
// solution counts as verified.
func verifySolution(ctx context.Context, caller *llmCaller, checker ArithmeticChecker, parallel bool, problem, solution string) (VerificationRecord, bool, error) {
	if !parallel {
		record, err := verifyWithLLM(ctx, caller, problem, solution)
		if err != nil {
			return VerificationRecord{}, false, err
		}
		return record, verdictPasses(record), nil
	}

	arithCh := make(chan TriState, 1)
	go func() {
		arithCh <- ArithmeticCheck(checker, solution)
	}()

	record, err := verifyWithLLM(ctx, caller, problem, solution)
	if err != nil {
		return VerificationRecord{}, false, err
	}

	arith := <-arithCh
	record.Arith = &arith
	return record, verdictPasses(record), nil
}
