package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

func TestNewDeepThink_Validation(t *testing.T) {
	if _, err := NewDeepThink(DeepThinkOptions{Model: "m"}); err == nil {
		t.Error("expected error for nil provider")
	}

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		return textResult("ok"), nil
	})
	if _, err := NewDeepThink(DeepThinkOptions{Provider: stub}); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := NewDeepThink(DeepThinkOptions{Provider: stub, Model: "m"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDeepThink_HappyPath(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return storedResult("x=5", "resp_1"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("Final: x=5"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "Solve for x: 2x=10",
		MaxIterations:         20,
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Mode != ModeDeepThink {
		t.Errorf("expected mode %q, got %q", ModeDeepThink, result.Mode)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}
	if result.SuccessfulVerifications != 1 {
		t.Errorf("expected 1 successful verification, got %d", result.SuccessfulVerifications)
	}
	if result.FinalSolution != "x=5" {
		t.Errorf("expected final solution x=5, got %q", result.FinalSolution)
	}
	if result.Summary != "Final: x=5" {
		t.Errorf("expected summary, got %q", result.Summary)
	}
	if got := stub.total(); got != 3 {
		t.Errorf("expected 3 provider calls (initial, verify, summary), got %d", got)
	}

	if len(result.VerificationLogs) != 1 {
		t.Fatalf("expected 1 verification record, got %d", len(result.VerificationLogs))
	}
	rec := result.VerificationLogs[0]
	if rec.Verdict != "pass" {
		t.Errorf("expected pass verdict, got %q", rec.Verdict)
	}
	if rec.Confidence == nil || *rec.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", rec.Confidence)
	}

	// The initial call anchors the prefix cache protocol even when no
	// cache is configured.
	initial := stub.byModel("m-initial")
	if len(initial) != 1 || !initial[0].store {
		t.Error("expected a single initial call with store=true")
	}
	if initial[0].transport != "response" {
		t.Errorf("expected Responses transport for initial, got %q", initial[0].transport)
	}
}

func TestDeepThink_CorrectionCycle(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=4"), nil
		case "m-verify":
			if nth == 1 {
				return verdictResult("fail", 0.2, "arithmetic error"), nil
			}
			return verdictResult("pass", 0.9), nil
		case "m-correct":
			return textResult("x=5"), nil
		case "m-summary":
			return textResult("done"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "Solve for x: 2x=10",
		MaxIterations:         20,
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if result.SuccessfulVerifications != 1 {
		t.Errorf("expected 1 successful verification, got %d", result.SuccessfulVerifications)
	}
	if result.FinalSolution != "x=5" {
		t.Errorf("expected corrected solution, got %q", result.FinalSolution)
	}
	if got := stub.total(); got != 5 {
		t.Errorf("expected 5 calls (initial, verify, correct, verify, summary), got %d", got)
	}
	if len(result.VerificationLogs) != 2 {
		t.Fatalf("expected 2 verification records, got %d", len(result.VerificationLogs))
	}
	if result.VerificationLogs[0].Verdict != "fail" || result.VerificationLogs[1].Verdict != "pass" {
		t.Errorf("unexpected verdict sequence: %+v", result.VerificationLogs)
	}

	// The correction prompt must carry the previous solution and the
	// verifier's feedback including its issues.
	corrections := stub.byModel("m-correct")
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction call, got %d", len(corrections))
	}
	user := corrections[0].userText()
	if !strings.Contains(user, "Previous solution:\nx=4") {
		t.Errorf("correction prompt missing previous solution: %q", user)
	}
	if !strings.Contains(user, "Verifier feedback:\nfail") || !strings.Contains(user, "arithmetic error") {
		t.Errorf("correction prompt missing verifier feedback: %q", user)
	}
}

func TestDeepThink_GiveUpOnErrorBudget(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("attempt"), nil
		case "m-verify":
			return verdictResult("fail", 0.1), nil
		case "m-correct":
			return textResult("retry"), nil
		case "m-summary":
			return textResult("best effort"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "hard problem",
		MaxIterations:         3,
		RequiredVerifications: 3,
		MaxErrors:             2,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SuccessfulVerifications != 0 {
		t.Errorf("expected 0 successful verifications, got %d", result.SuccessfulVerifications)
	}
	if result.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", result.Iterations)
	}
	if len(result.VerificationLogs) != 3 {
		t.Errorf("expected 3 verification records, got %d", len(result.VerificationLogs))
	}
	if result.Summary != "best effort" {
		t.Errorf("expected a summary even after give-up, got %q", result.Summary)
	}
	if got := stub.total(); got != 7 {
		t.Errorf("expected 7 calls, got %d", got)
	}
}

func TestDeepThink_ZeroIterationsRunsInitialOnly(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("attempt"), nil
		case "m-verify":
			return verdictResult("fail", 0.1), nil
		case "m-summary":
			return textResult("best effort"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "hard problem",
		MaxIterations:         0,
		RequiredVerifications: 3,
		MaxErrors:             100,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Only the initial attempt runs: one solve, one verification, one
	// summary, and no correction passes at all.
	if got := len(stub.byModel("m-correct")); got != 0 {
		t.Errorf("expected no correction calls, got %d", got)
	}
	if got := stub.total(); got != 3 {
		t.Errorf("expected 3 calls (initial, verify, summary), got %d", got)
	}
	if len(result.VerificationLogs) != 1 {
		t.Errorf("expected 1 verification record, got %d", len(result.VerificationLogs))
	}
	if result.SuccessfulVerifications != 0 {
		t.Errorf("expected 0 successful verifications, got %d", result.SuccessfulVerifications)
	}
	if result.FinalSolution != "attempt" {
		t.Errorf("expected the initial attempt as the final solution, got %q", result.FinalSolution)
	}
}

func TestDeepThink_ErrorsResetOnSuccess(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial", "m-correct":
			return textResult("attempt"), nil
		case "m-verify":
			// fail, fail, pass, fail, fail: without the reset the run
			// would stop one cycle earlier.
			if nth == 3 {
				return verdictResult("pass", 0.9), nil
			}
			return verdictResult("fail", 0.1), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         20,
		RequiredVerifications: 3,
		MaxErrors:             2,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Iterations != 5 {
		t.Errorf("expected 5 iterations, got %d", result.Iterations)
	}
	if result.SuccessfulVerifications != 1 {
		t.Errorf("expected 1 successful verification, got %d", result.SuccessfulVerifications)
	}
	if len(result.VerificationLogs) != 5 {
		t.Errorf("expected 5 verification records, got %d", len(result.VerificationLogs))
	}
}

func TestDeepThink_FirstFailureDoesNotSpendErrorBudget(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial", "m-correct":
			return textResult("attempt"), nil
		case "m-verify":
			if nth == 1 {
				return verdictResult("fail", 0.1), nil
			}
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	// With max_errors=1, a counted first failure would end the run with
	// zero successes before any correction.
	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         20,
		RequiredVerifications: 1,
		MaxErrors:             1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SuccessfulVerifications != 1 {
		t.Errorf("expected the correction cycle to run, got %d successes", result.SuccessfulVerifications)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
}

func TestDeepThink_EmptyCorrectionKeepsSolution(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=4"), nil
		case "m-verify":
			if nth == 1 {
				return verdictResult("fail", 0.3), nil
			}
			return verdictResult("pass", 0.9), nil
		case "m-correct":
			return textResult(""), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         20,
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.FinalSolution != "x=4" {
		t.Errorf("expected the previous solution to survive an empty correction, got %q", result.FinalSolution)
	}
	if len(stub.byModel("m-correct")) != 1 {
		t.Error("expected the correction call to have happened")
	}
}

func TestDeepThink_PlanningPass(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-plan":
			return textResult("Plan A"), nil
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		EnablePlanning:        true,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Plan != "Plan A" {
		t.Errorf("expected plan on result, got %q", result.Plan)
	}
	if got := stub.total(); got != 4 {
		t.Errorf("expected 4 calls (plan, initial, verify, summary), got %d", got)
	}

	plans := stub.byModel("m-plan")
	if len(plans) != 1 || plans[0].transport != "chat" {
		t.Error("expected one planning call over chat")
	}
	initial := stub.byModel("m-initial")
	if len(initial) != 1 {
		t.Fatalf("expected 1 initial call, got %d", len(initial))
	}
	if !strings.Contains(initial[0].userText(), "### Proposed approach ###\nPlan A") {
		t.Errorf("initial prompt missing the plan: %q", initial[0].userText())
	}
}

func TestDeepThink_KnowledgeInSystemPrompt(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		Knowledge:             "Lemma 7 applies",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	initial := stub.byModel("m-initial")
	if len(initial) != 1 {
		t.Fatalf("expected 1 initial call, got %d", len(initial))
	}
	if !strings.Contains(initial[0].systemText(), "### Knowledge ###\nLemma 7 applies") {
		t.Errorf("system prompt missing knowledge section: %q", initial[0].systemText())
	}
}

func TestDeepThink_ResponseIDReusedAcrossRuns(t *testing.T) {
	store := cache.New(cache.Options{Store: cache.NewMemoryStore(), Enabled: true})
	defer store.Close()

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return storedResult("x=5", fmt.Sprintf("resp_%d", nth)), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	opts := DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Cache:                 store,
	}

	for run := 1; run <= 3; run++ {
		eng, err := NewDeepThink(opts)
		if err != nil {
			t.Fatalf("NewDeepThink failed: %v", err)
		}
		if _, err := eng.Run(context.Background()); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
	}

	initial := stub.byModel("m-initial")
	if len(initial) != 3 {
		t.Fatalf("expected 3 initial calls, got %d", len(initial))
	}
	if initial[0].prevID != "" {
		t.Errorf("run 1 should start without an anchor, got %q", initial[0].prevID)
	}
	if initial[1].prevID != "resp_1" {
		t.Errorf("run 2 should chain from resp_1, got %q", initial[1].prevID)
	}
	if initial[2].prevID != "resp_2" {
		t.Errorf("run 3 should chain from resp_2, got %q", initial[2].prevID)
	}
}

func TestDeepThink_StaleAnchorEvictedOnInvalidRequest(t *testing.T) {
	store := cache.New(cache.Options{Store: cache.NewMemoryStore(), Enabled: true})
	defer store.Close()

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			if call.prevID != "" {
				return nil, &providers.InvalidRequestError{Provider: "stub", Message: "previous response not found"}
			}
			return storedResult("x=5", "resp_1"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	opts := DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Cache:                 store,
	}

	run := func() error {
		eng, err := NewDeepThink(opts)
		if err != nil {
			t.Fatalf("NewDeepThink failed: %v", err)
		}
		_, err = eng.Run(context.Background())
		return err
	}

	if err := run(); err != nil {
		t.Fatalf("seeding run failed: %v", err)
	}

	// The anchored run fails upstream and must evict the stale id.
	err := run()
	var invalidErr *providers.InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}

	if err := run(); err != nil {
		t.Fatalf("post-eviction run failed: %v", err)
	}
	initial := stub.byModel("m-initial")
	if len(initial) != 3 {
		t.Fatalf("expected 3 initial calls, got %d", len(initial))
	}
	if initial[2].prevID != "" {
		t.Errorf("expected a clean start after eviction, got anchor %q", initial[2].prevID)
	}
}

func TestDeepThink_AnchorKeptOnRetriableFailure(t *testing.T) {
	store := cache.New(cache.Options{Store: cache.NewMemoryStore(), Enabled: true})
	defer store.Close()

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			if call.prevID != "" {
				return nil, &providers.ServerError{Provider: "stub", StatusCode: 503, Message: "overloaded"}
			}
			return storedResult("x=5", "resp_1"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	opts := DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Cache:                 store,
	}

	run := func() error {
		eng, err := NewDeepThink(opts)
		if err != nil {
			t.Fatalf("NewDeepThink failed: %v", err)
		}
		_, err = eng.Run(context.Background())
		return err
	}

	if err := run(); err != nil {
		t.Fatalf("seeding run failed: %v", err)
	}
	if err := run(); err == nil {
		t.Fatal("expected the anchored run to fail")
	}
	// A transient failure keeps the anchor for the next attempt.
	if err := run(); err == nil {
		t.Fatal("expected the anchored run to fail again")
	}

	initial := stub.byModel("m-initial")
	if len(initial) != 3 {
		t.Fatalf("expected 3 initial calls, got %d", len(initial))
	}
	if initial[2].prevID != "resp_1" {
		t.Errorf("expected the anchor to survive a retriable failure, got %q", initial[2].prevID)
	}
}

func TestDeepThink_ChatFallbackWithoutResponses(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return textResult(`{"verdict":"pass","confidence":0.8}`), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})
	stub.caps = providers.Capabilities{SupportsStreaming: true}

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SuccessfulVerifications != 1 {
		t.Errorf("expected the fallback text verdict to parse, got %d successes", result.SuccessfulVerifications)
	}
	initial := stub.byModel("m-initial")
	if len(initial) != 1 || initial[0].transport != "chat" {
		t.Error("expected the initial call over chat")
	}

	verify := stub.byModel("m-verify")
	if len(verify) != 1 {
		t.Fatalf("expected 1 verification call, got %d", len(verify))
	}
	if verify[0].transport != "chat" || verify[0].format != nil {
		t.Error("expected a plain chat verification without a response format")
	}
	if !strings.Contains(verify[0].userText(), "Return ONLY a single-line minified JSON object") {
		t.Errorf("verification prompt missing the JSON guard: %q", verify[0].userText())
	}
}

func TestDeepThink_ParallelCheckVetoes(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial", "m-correct":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         2,
		RequiredVerifications: 1,
		MaxErrors:             5,
		EnableParallelCheck:   true,
		Checker:               CheckerFunc(func(string) TriState { return TriFalse }),
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SuccessfulVerifications != 0 {
		t.Errorf("expected the arithmetic veto to block every pass, got %d", result.SuccessfulVerifications)
	}
	if result.Iterations != 2 {
		t.Errorf("expected the iteration cap to end the run, got %d", result.Iterations)
	}
	for i, rec := range result.VerificationLogs {
		if rec.Arith == nil || *rec.Arith != TriFalse {
			t.Errorf("record %d missing the arithmetic veto: %+v", i, rec)
		}
	}
}

func TestDeepThink_ParallelCheckDefaultChecker(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("2+2=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         1,
		RequiredVerifications: 1,
		EnableParallelCheck:   true,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The built-in checker catches the bad equation even though the LLM
	// verifier passed it.
	if result.SuccessfulVerifications != 0 {
		t.Errorf("expected 0 successes, got %d", result.SuccessfulVerifications)
	}
	if len(result.VerificationLogs) != 1 {
		t.Fatalf("expected 1 verification record, got %d", len(result.VerificationLogs))
	}
	if rec := result.VerificationLogs[0]; rec.Arith == nil || *rec.Arith != TriFalse {
		t.Errorf("expected arith=false on the record, got %+v", rec)
	}
}

func TestDeepThink_MeterRecordsStages(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	m := meter.New(nil, meter.Options{})
	var (
		mu     sync.Mutex
		stages []string
		models []string
	)
	m.OnRecord(func(ev meter.RecordEvent) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, ev.Stage)
		models = append(models, ev.Model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Meter:                 m,
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	wantStages := []string{StageInitial, StageVerification, StageSummary}
	wantModels := []string{"m-initial", "m-verify", "m-summary"}
	if len(stages) != len(wantStages) {
		t.Fatalf("expected %d meter records, got %d", len(wantStages), len(stages))
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] || models[i] != wantModels[i] {
			t.Errorf("record %d: got (%s, %s), want (%s, %s)", i, stages[i], models[i], wantStages[i], wantModels[i])
		}
	}
}

func TestDeepThink_ThrottleSpacesCalls(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		CallThrottle:          15 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	start := time.Now()
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected the throttle to space 3 calls by 45ms, elapsed %s", elapsed)
	}
}

func TestDeepThink_LimiterFailStrategy(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial", "m-correct":
			return textResult("x=5"), nil
		case "m-verify":
			if nth == 1 {
				return verdictResult("fail", 0.1), nil
			}
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	limiter := ratelimit.NewLimiter()
	// One verification fits the burst; the refill rate is effectively
	// zero, so the second verification must be rejected outright.
	limiter.ConfigureBucket(ratelimit.MakeKey("stub", "m-verify"), 0.0001, 1)

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Limiter:               limiter,
		LimitStrategy:         ratelimit.StrategyFail,
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	_, err = eng.Run(context.Background())
	var exceeded *ratelimit.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if exceeded.Key != "stub:m-verify" {
		t.Errorf("unexpected limiter key %q", exceeded.Key)
	}
}

func TestDeepThink_LimitKeyPinsAdmissions(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	limiter := ratelimit.NewLimiter()
	// The run makes 3 calls across distinct stage models. With every
	// admission pinned to one key, a burst of 2 leaves nothing for the
	// summary call.
	limiter.ConfigureBucket("req-42", 0.0001, 2)

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Limiter:               limiter,
		LimitStrategy:         ratelimit.StrategyFail,
		LimitKey:              "req-42",
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	_, err = eng.Run(context.Background())
	var exceeded *ratelimit.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if exceeded.Key != "req-42" {
		t.Errorf("admission charged key %q, want the pinned key", exceeded.Key)
	}
}

func TestDeepThink_UnparseableVerifierOutput(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial", "m-correct":
			return textResult("x=5"), nil
		case "m-verify":
			return textResult("I think it looks fine"), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		MaxIterations:         2,
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.SuccessfulVerifications != 0 {
		t.Errorf("unparseable output must not count as a pass, got %d", result.SuccessfulVerifications)
	}
	for i, rec := range result.VerificationLogs {
		if rec.Verdict != "fail" || rec.Error != errUnparseableVerification {
			t.Errorf("record %d: expected a tagged fail, got %+v", i, rec)
		}
	}
}

func TestDeepThink_EventSequence(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=4"), nil
		case "m-verify":
			if nth == 1 {
				return verdictResult("fail", 0.2), nil
			}
			return verdictResult("pass", 0.9), nil
		case "m-correct":
			return textResult("x=5"), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	sink := &recordingSink{}
	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Sink:                  sink,
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"thinking", "solution", "thinking"}
	if got := sink.names(); len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d: got %q, want %q", i, got[i], want[i])
			}
		}
	}

	if payload, ok := sink.first("solution"); !ok || payload["iteration"] != 0 {
		t.Errorf("expected solution event with iteration 0, got %v", payload)
	}
}

func TestDeepThink_SinkPanicDoesNotAbortRun(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-initial":
			return textResult("x=5"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewDeepThink(DeepThinkOptions{
		Provider:              stub,
		Model:                 "base",
		Problem:               "p",
		RequiredVerifications: 1,
		ModelStages:           testStageModels(),
		Sink: SinkFunc(func(string, map[string]interface{}) {
			panic("sink exploded")
		}),
	})
	if err != nil {
		t.Fatalf("NewDeepThink failed: %v", err)
	}

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("a panicking sink must not fail the run: %v", err)
	}
}
