package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fanOutStub scripts a full UltraThink run: plan, agent configs, two
// agents solving on first verification, synthesis and summary.
func fanOutStub(configJSON string) *stubProvider {
	return newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-plan":
			if nth == 1 {
				return textResult("Approaches A,B"), nil
			}
			return textResult(configJSON), nil
		case "m-initial":
			user := call.userText()
			switch {
			case strings.Contains(user, "Use A"):
				return textResult("solution-a1"), nil
			case strings.Contains(user, "Use B"):
				return textResult("solution-a2"), nil
			}
			return textResult("solution-generic"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-synth":
			return textResult("Merged"), nil
		case "m-summary":
			if strings.Contains(call.userText(), "Merged") {
				return textResult("Final: Merged"), nil
			}
			return textResult("agent summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})
}

func TestNewUltraThink_Validation(t *testing.T) {
	if _, err := NewUltraThink(UltraThinkOptions{Model: "m"}); err == nil {
		t.Error("expected error for nil provider")
	}
	stub := fanOutStub("[]")
	if _, err := NewUltraThink(UltraThinkOptions{Provider: stub}); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestUltraThink_FanOut(t *testing.T) {
	stub := fanOutStub(`[{"agentId":"a1","specificPrompt":"Use A"},{"agentId":"a2","specificPrompt":"Use B"}]`)

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "Solve the problem",
		NumAgents:                     2,
		ParallelAgents:                2,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Mode != ModeUltraThink {
		t.Errorf("expected mode %q, got %q", ModeUltraThink, result.Mode)
	}
	if result.Plan != "Approaches A,B" {
		t.Errorf("unexpected plan %q", result.Plan)
	}
	if result.NumAgents != 2 {
		t.Errorf("expected 2 agents, got %d", result.NumAgents)
	}
	if len(result.AgentResults) != 2 {
		t.Fatalf("expected 2 agent results, got %d", len(result.AgentResults))
	}
	if result.AgentResults[0].AgentID != "a1" || result.AgentResults[1].AgentID != "a2" {
		t.Errorf("agent order not preserved: %s, %s",
			result.AgentResults[0].AgentID, result.AgentResults[1].AgentID)
	}
	if result.AgentResults[0].Result.FinalSolution != "solution-a1" {
		t.Errorf("unexpected agent solution %q", result.AgentResults[0].Result.FinalSolution)
	}
	if result.Synthesis != "Merged" {
		t.Errorf("expected synthesis Merged, got %q", result.Synthesis)
	}
	if result.Summary != "Final: Merged" {
		t.Errorf("expected summary, got %q", result.Summary)
	}

	// plan + configs + 2x(initial, verify, summary) + synthesis + summary
	if got := stub.total(); got != 10 {
		t.Errorf("expected 10 provider calls, got %d", got)
	}

	synth := stub.byModel("m-synth")
	if len(synth) != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", len(synth))
	}
	user := synth[0].userText()
	if !strings.Contains(user, "### a1 ###\nsolution-a1") || !strings.Contains(user, "### a2 ###\nsolution-a2") {
		t.Errorf("synthesis prompt missing agent blocks: %q", user)
	}
	if !strings.Contains(user, "\n\n---\n\n") {
		t.Errorf("synthesis prompt missing the block separator: %q", user)
	}

	for _, call := range stub.byModel("m-plan") {
		if call.transport != "chat" {
			t.Error("planning calls must use chat")
		}
	}
	if stub.byModel("m-synth")[0].transport != "chat" {
		t.Error("synthesis must use chat")
	}
}

func TestUltraThink_AgentOrderPreservedUnderConcurrency(t *testing.T) {
	configJSON := `[{"agentId":"a1","specificPrompt":"Use 1"},{"agentId":"a2","specificPrompt":"Use 2"},` +
		`{"agentId":"a3","specificPrompt":"Use 3"},{"agentId":"a4","specificPrompt":"Use 4"}]`

	// Earlier agents respond slower, so completion order is reversed.
	delays := map[string]time.Duration{
		"Use 1": 60 * time.Millisecond,
		"Use 2": 40 * time.Millisecond,
		"Use 3": 20 * time.Millisecond,
		"Use 4": 0,
	}

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-plan":
			if nth == 1 {
				return textResult("plan"), nil
			}
			return textResult(configJSON), nil
		case "m-initial":
			for marker, delay := range delays {
				if strings.Contains(call.userText(), marker) {
					time.Sleep(delay)
					return textResult("solution-" + marker), nil
				}
			}
			return textResult("solution"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-synth":
			return textResult("Merged"), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     4,
		ParallelAgents:                4,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"a1", "a2", "a3", "a4"}
	for i, w := range want {
		if result.AgentResults[i].AgentID != w {
			t.Errorf("result %d: got %q, want %q", i, result.AgentResults[i].AgentID, w)
		}
	}
}

func TestUltraThink_ConfigFallback(t *testing.T) {
	stub := fanOutStub("here are your agents: alpha, beta, gamma")

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     3,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.NumAgents != 3 {
		t.Errorf("expected 3 synthetic agents, got %d", result.NumAgents)
	}
	for i, r := range result.AgentResults {
		want := fmt.Sprintf("agent-%d", i+1)
		if r.AgentID != want {
			t.Errorf("agent %d: got id %q, want %q", i, r.AgentID, want)
		}
	}

	// Synthetic guidance must reach the solvers.
	found := false
	for _, call := range stub.byModel("m-initial") {
		if strings.Contains(call.userText(), "Solve using method 1") {
			found = true
		}
	}
	if !found {
		t.Error("expected synthetic guidance in an agent prompt")
	}
}

func TestUltraThink_EmptyConfigArrayFallsBack(t *testing.T) {
	stub := fanOutStub("[]")

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     2,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.NumAgents != 2 {
		t.Errorf("expected fallback to 2 agents, got %d", result.NumAgents)
	}
}

func TestUltraThink_StrictConfigError(t *testing.T) {
	stub := fanOutStub("not json")

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:           stub,
		Model:              "base",
		Problem:            "p",
		NumAgents:          2,
		StrictAgentConfigs: true,
		ModelStages:        testStageModels(),
		Logger:             quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	_, err = eng.Run(context.Background())
	var cfgErr *AgentConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected AgentConfigError, got %v", err)
	}
	if cfgErr.Output != "not json" {
		t.Errorf("expected the raw output on the error, got %q", cfgErr.Output)
	}
	if len(stub.byModel("m-initial")) != 0 {
		t.Error("no agent may run after a strict config failure")
	}
}

func TestUltraThink_ShorterParsedListWins(t *testing.T) {
	stub := fanOutStub(`[{"agentId":"a1","specificPrompt":"Use A"}]`)

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     3,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.NumAgents != 1 || len(result.AgentResults) != 1 {
		t.Errorf("expected the parsed single-agent list to win, got %d agents", result.NumAgents)
	}
}

func TestUltraThink_AgentOverrides(t *testing.T) {
	configJSON := `[{"agentId":"a1","specificPrompt":"p1","modelOverride":"m-agent","llm_params":{"temperature":0.25}}]`

	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-plan":
			if nth == 1 {
				return textResult("plan"), nil
			}
			return textResult(configJSON), nil
		case "m-agent":
			return textResult("solution"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-synth":
			return textResult("Merged"), nil
		case "m-summary":
			return textResult("summary"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	// No initial override in the stage map, so the agent's model
	// override becomes the solve model.
	stages := testStageModels()
	delete(stages, StageInitial)
	delete(stages, StageCorrection)

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     1,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   stages,
		LLMParams:                     map[string]interface{}{"temperature": 0.7},
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	solves := stub.byModel("m-agent")
	if len(solves) != 1 {
		t.Fatalf("expected 1 solve call on the overridden model, got %d", len(solves))
	}
	if solves[0].temperature == nil || *solves[0].temperature != 0.25 {
		t.Errorf("expected the agent llm_params override, got %v", solves[0].temperature)
	}

	plans := stub.byModel("m-plan")
	if len(plans) == 0 || plans[0].temperature == nil || *plans[0].temperature != 0.7 {
		t.Error("expected the base temperature on orchestrator calls")
	}
}

func TestUltraThink_AgentFailureAbortsRun(t *testing.T) {
	stub := newStubProvider(func(call stubCall, nth int) (*providers.CallResult, error) {
		switch call.model {
		case "m-plan":
			if nth == 1 {
				return textResult("plan"), nil
			}
			return textResult(`[{"agentId":"a1","specificPrompt":"Use A"},{"agentId":"a2","specificPrompt":"Use B"}]`), nil
		case "m-initial":
			if strings.Contains(call.userText(), "Use B") {
				return nil, &providers.ServerError{Provider: "stub", StatusCode: 500, Message: "boom"}
			}
			time.Sleep(20 * time.Millisecond)
			return textResult("solution-a1"), nil
		case "m-verify":
			return verdictResult("pass", 0.9), nil
		case "m-synth", "m-summary":
			return textResult("x"), nil
		}
		return nil, fmt.Errorf("unexpected model %q", call.model)
	})

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     2,
		ParallelAgents:                2,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}

	result, err := eng.Run(context.Background())
	var serverErr *providers.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected the agent failure to propagate, got %v", err)
	}
	if result != nil {
		t.Error("expected no partial result")
	}
	if len(stub.byModel("m-synth")) != 0 {
		t.Error("synthesis must not run after an agent failure")
	}
}

func TestUltraThink_Events(t *testing.T) {
	stub := fanOutStub(`[{"agentId":"a1","specificPrompt":"Use A"},{"agentId":"a2","specificPrompt":"Use B"}]`)

	sink := &recordingSink{}
	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     2,
		ParallelAgents:                2,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Sink:                          sink,
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	counts := map[string]int{
		"planning":           2,
		"plan_generated":     1,
		"agents_configured":  1,
		"agents_running":     1,
		"agent_start":        2,
		"agent_complete":     2,
		"synthesis":          1,
		"synthesis_complete": 1,
		"summary":            1,
	}
	for name, want := range counts {
		if got := sink.count(name); got != want {
			t.Errorf("event %q: got %d, want %d", name, got, want)
		}
	}

	// Each agent forwards thinking and solution events.
	if got := sink.count("agent_progress"); got < 4 {
		t.Errorf("expected at least 4 agent_progress events, got %d", got)
	}
	payload, ok := sink.first("agent_progress")
	if !ok {
		t.Fatal("missing agent_progress event")
	}
	if _, ok := payload["agent_id"]; !ok {
		t.Error("agent_progress payload missing agent_id")
	}
	if _, ok := payload["event"]; !ok {
		t.Error("agent_progress payload missing the inner event name")
	}

	if payload, ok := sink.first("agents_configured"); !ok || payload["num_agents"] != 2 {
		t.Errorf("expected agents_configured with num_agents=2, got %v", payload)
	}
}

func TestUltraThink_SharedMeterAcrossAgents(t *testing.T) {
	stub := fanOutStub(`[{"agentId":"a1","specificPrompt":"Use A"},{"agentId":"a2","specificPrompt":"Use B"}]`)

	m := meter.New(nil, meter.Options{})
	stages := make(map[string]int)
	m.OnRecord(func(ev meter.RecordEvent) {
		stages[ev.Stage]++
	})

	eng, err := NewUltraThink(UltraThinkOptions{
		Provider:                      stub,
		Model:                         "base",
		Problem:                       "p",
		NumAgents:                     2,
		ParallelAgents:                1,
		RequiredVerificationsPerAgent: 1,
		ModelStages:                   testStageModels(),
		Meter:                         m,
		Logger:                        quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewUltraThink failed: %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := map[string]int{
		StagePlanning:     2,
		StageInitial:      2,
		StageVerification: 2,
		StageSynthesis:    1,
		StageSummary:      3,
	}
	for stage, n := range want {
		if stages[stage] != n {
			t.Errorf("stage %q: got %d records, want %d", stage, stages[stage], n)
		}
	}
}
