//go:build integration

package test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/minerva/internal/upstream"
	"mercator-hq/minerva/pkg/api/handlers"
	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/ledger"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
	"mercator-hq/minerva/pkg/providers/registry"
	"mercator-hq/minerva/pkg/server"
)

// passVerdict is what the verification stage expects the model to say
// when a solution holds up.
const passVerdict = `{"verdict":"pass","confidence":0.95,"reasons":["checks out"],"issues":[]}`

// env wires a fake LLM backend, a provider registry and the full HTTP
// stack together, the same way the run command does.
type env struct {
	upstream *upstream.Server
	api      *httptest.Server
	registry *registry.Registry
	recorder *ledger.Recorder
	ledger   *ledger.MemoryStore
}

func newEnv(t *testing.T, mutate func(*config.Config)) *env {
	t.Helper()

	up := upstream.New()

	cfg := config.DefaultConfig()
	cfg.Auth.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.Tracing.Enabled = false
	cfg.Cache.Backend = "memory"
	cfg.Ledger.Backend = "memory"
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New(
		map[string]providers.ProviderConfig{
			"mock": {
				Name:       "mock",
				Type:       "openai",
				BaseURL:    up.URL(),
				APIKey:     "test-key",
				Timeout:    10 * time.Second,
				MaxRetries: 0,
			},
		},
		map[string]registry.Route{
			"solver": {
				Provider: "mock",
				Model:    "gpt-4o",
				Defaults: registry.ModelDefaults{
					Level:                 "deepthink",
					MaxIterations:         2,
					RequiredVerifications: 1,
					MaxErrors:             3,
				},
			},
			"prover": {
				Provider: "mock",
				Model:    "gpt-4o",
				Defaults: registry.ModelDefaults{
					Level:                 "ultrathink",
					MaxIterations:         1,
					RequiredVerifications: 1,
					MaxErrors:             3,
					NumAgents:             1,
					ParallelAgents:        1,
				},
			},
			// A route with no iteration or fan-out values: requests
			// against it resolve the endpoint defaults.
			"sage": {
				Provider: "mock",
				Model:    "gpt-4o",
				Defaults: registry.ModelDefaults{Level: "ultrathink"},
			},
		},
	)

	ledgerStore := ledger.NewMemoryStore()
	recorder := ledger.NewRecorder(ledgerStore, &ledger.Config{
		Enabled:      true,
		BufferSize:   64,
		WriteTimeout: time.Second,
		Logger:       logger,
	})

	deps := &handlers.Deps{
		Registry:   reg,
		Config:     cfg,
		Pricing:    meter.Pricing{"mock": {"gpt-4o": {Prompt: 2.5, CachedPrompt: 1.25, Completion: 10}}},
		CacheStore: cache.NewMemoryStore(),
		Limiter:    ratelimit.NewLimiter(),
		Recorder:   recorder,
		Logger:     logger,
	}

	srv := server.New(cfg, deps, server.Options{Logger: logger})
	api := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		api.Close()
		_ = recorder.Close()
		_ = reg.Close()
		up.Close()
	})

	return &env{upstream: up, api: api, registry: reg, recorder: recorder, ledger: ledgerStore}
}

func (e *env) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := http.Post(e.api.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestDeepThinkEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	// One solve, one passing verification, one summary.
	e.upstream.Enqueue(
		upstream.Reply{Content: "The answer is 4."},
		upstream.Reply{Content: passVerdict},
		upstream.Reply{Content: "2+2 equals 4."},
	)

	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":                  "solver",
		"problem":                "What is 2+2?",
		"max_iterations":         1,
		"required_verifications": 1,
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Result struct {
			Mode                    string `json:"mode"`
			FinalSolution           string `json:"final_solution"`
			Summary                 string `json:"summary"`
			Iterations              int    `json:"iterations"`
			SuccessfulVerifications int    `json:"successful_verifications"`
		} `json:"result"`
		Usage   meter.UsageStats `json:"usage"`
		CostUSD float64          `json:"cost_usd"`
	}
	decode(t, resp, &out)

	if out.Result.Mode != "deep-think" {
		t.Errorf("mode = %q, want %q", out.Result.Mode, "deep-think")
	}
	if out.Result.FinalSolution != "The answer is 4." {
		t.Errorf("final_solution = %q", out.Result.FinalSolution)
	}
	if out.Result.Summary != "2+2 equals 4." {
		t.Errorf("summary = %q", out.Result.Summary)
	}
	if out.Result.SuccessfulVerifications != 1 {
		t.Errorf("successful_verifications = %d, want 1", out.Result.SuccessfulVerifications)
	}

	// Three calls at 10 input / 20 output tokens each.
	if out.Usage.InputTokens != 30 || out.Usage.OutputTokens != 60 {
		t.Errorf("usage = %+v, want 30 input / 60 output", out.Usage)
	}
	if out.CostUSD <= 0 {
		t.Errorf("cost_usd = %f, want > 0", out.CostUSD)
	}
	if got := e.upstream.CallCount(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestDeepThinkCorrectionLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	// Solve, failing verification, correction, passing verification,
	// summary: five calls.
	e.upstream.Enqueue(
		upstream.Reply{Content: "The answer is 5."},
		upstream.Reply{Content: `{"verdict":"fail","confidence":0.9,"reasons":[],"issues":["arithmetic slip"]}`},
		upstream.Reply{Content: "The answer is 4."},
		upstream.Reply{Content: passVerdict},
		upstream.Reply{Content: "2+2 equals 4."},
	)

	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":                  "solver",
		"problem":                "What is 2+2?",
		"max_iterations":         3,
		"required_verifications": 1,
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Result struct {
			FinalSolution    string `json:"final_solution"`
			Iterations       int    `json:"iterations"`
			VerificationLogs []struct {
				Verdict string `json:"verdict"`
			} `json:"verification_logs"`
		} `json:"result"`
	}
	decode(t, resp, &out)

	if out.Result.FinalSolution != "The answer is 4." {
		t.Errorf("final_solution = %q, correction was not applied", out.Result.FinalSolution)
	}
	if len(out.Result.VerificationLogs) != 2 {
		t.Fatalf("verification_logs = %d entries, want 2", len(out.Result.VerificationLogs))
	}
	if out.Result.VerificationLogs[0].Verdict != "fail" || out.Result.VerificationLogs[1].Verdict != "pass" {
		t.Errorf("verdict sequence = %+v", out.Result.VerificationLogs)
	}
}

func TestUltraThinkEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	// Plan, agent roster, then one agent's solve/verify/summary, then
	// synthesis and the final summary.
	e.upstream.Enqueue(
		upstream.Reply{Content: "Attack the problem head on."},
		upstream.Reply{Content: `[{"agentId":"alpha","approach":"direct","specificPrompt":"Solve directly."}]`},
		upstream.Reply{Content: "Agent answer: 4."},
		upstream.Reply{Content: passVerdict},
		upstream.Reply{Content: "Agent summary."},
		upstream.Reply{Content: "All agents agree: 4."},
		upstream.Reply{Content: "The final answer is 4."},
	)

	resp := e.post(t, "/reasoning/ultrathink", map[string]interface{}{
		"model":                  "prover",
		"problem":                "What is 2+2?",
		"num_agents":             1,
		"parallel_agents":        1,
		"max_iterations":         1,
		"required_verifications": 1,
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Result struct {
			Mode         string `json:"mode"`
			NumAgents    int    `json:"num_agents"`
			Synthesis    string `json:"synthesis"`
			Summary      string `json:"summary"`
			AgentResults []struct {
				AgentID string `json:"agent_id"`
			} `json:"agent_results"`
		} `json:"result"`
		Usage meter.UsageStats `json:"usage"`
	}
	decode(t, resp, &out)

	if out.Result.Mode != "ultra-think" {
		t.Errorf("mode = %q, want %q", out.Result.Mode, "ultra-think")
	}
	if out.Result.NumAgents != 1 {
		t.Errorf("num_agents = %d, want 1", out.Result.NumAgents)
	}
	if len(out.Result.AgentResults) != 1 || out.Result.AgentResults[0].AgentID != "alpha" {
		t.Errorf("agent_results = %+v", out.Result.AgentResults)
	}
	if out.Result.Synthesis != "All agents agree: 4." {
		t.Errorf("synthesis = %q", out.Result.Synthesis)
	}
	if got := e.upstream.CallCount(); got != 7 {
		t.Errorf("upstream calls = %d, want 7", got)
	}
}

func TestUltraThinkEndpointDefaults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	// Every reply parses as a passing verdict; the roster reply does
	// not parse as an agent list, so the fan-out falls back to the
	// resolved agent count.
	e.upstream.SetDefault(passVerdict)

	resp := e.post(t, "/reasoning/ultrathink", map[string]interface{}{
		"model":   "sage",
		"problem": "What is 2+2?",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Result struct {
			NumAgents    int `json:"num_agents"`
			AgentResults []struct {
				Result struct {
					Iterations              int `json:"iterations"`
					SuccessfulVerifications int `json:"successful_verifications"`
				} `json:"result"`
			} `json:"agent_results"`
		} `json:"result"`
	}
	decode(t, resp, &out)

	// A request that sets nothing runs four agents needing two passing
	// verifications each.
	if out.Result.NumAgents != 4 {
		t.Errorf("num_agents = %d, want 4", out.Result.NumAgents)
	}
	if len(out.Result.AgentResults) != 4 {
		t.Fatalf("agent_results = %d entries, want 4", len(out.Result.AgentResults))
	}
	for i, agent := range out.Result.AgentResults {
		if agent.Result.SuccessfulVerifications != 2 {
			t.Errorf("agent %d successful_verifications = %d, want 2", i, agent.Result.SuccessfulVerifications)
		}
	}

	// Plan and roster, then per agent a solve, a passing verification,
	// a correction pass with its verification, and a summary, then
	// synthesis and the final summary.
	if got := e.upstream.CallCount(); got != 24 {
		t.Errorf("upstream calls = %d, want 24", got)
	}
}

func TestChatCompletionsPassthrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.Enqueue(upstream.Reply{Content: "Hello there."})

	resp := e.post(t, "/v1/chat/completions", map[string]interface{}{
		"model": "solver",
		"messages": []map[string]interface{}{
			{"role": "user", "content": "Hi"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Object  string `json:"object"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string      `json:"role"`
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	decode(t, resp, &out)

	if out.Object != "chat.completion" {
		t.Errorf("object = %q", out.Object)
	}
	if len(out.Choices) != 1 || out.Choices[0].Message.Content != "Hello there." {
		t.Errorf("choices = %+v", out.Choices)
	}
	if out.Usage.PromptTokens != 10 || out.Usage.CompletionTokens != 20 {
		t.Errorf("usage = %+v", out.Usage)
	}

	// The logical model id resolves to the backend model upstream.
	reqs := e.upstream.Requests()
	if len(reqs) != 1 || reqs[0].Model != "gpt-4o" {
		t.Errorf("upstream requests = %+v, want one call for gpt-4o", reqs)
	}
}

func TestChatCompletionsStreaming(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.Enqueue(upstream.Reply{Content: "streamed answer"})

	resp := e.post(t, "/v1/chat/completions", map[string]interface{}{
		"model":  "solver",
		"stream": true,
		"messages": []map[string]interface{}{
			{"role": "user", "content": "Hi"},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	var content strings.Builder
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("bad stream chunk %q: %v", payload, err)
		}
		for _, c := range chunk.Choices {
			content.WriteString(c.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("stream read failed: %v", err)
	}

	if !sawDone {
		t.Error("stream did not end with [DONE]")
	}
	if content.String() != "streamed answer" {
		t.Errorf("streamed content = %q, want %q", content.String(), "streamed answer")
	}
}

func TestResponsesPassthrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.Enqueue(upstream.Reply{Content: "Response text."})

	resp := e.post(t, "/v1/responses", map[string]interface{}{
		"model": "solver",
		"input": "Hi",
	})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Object     string `json:"object"`
		OutputText string `json:"output_text"`
		ID         string `json:"id"`
	}
	decode(t, resp, &out)

	if out.Object != "response" {
		t.Errorf("object = %q", out.Object)
	}
	if out.OutputText != "Response text." {
		t.Errorf("output_text = %q", out.OutputText)
	}
	if out.ID == "" {
		t.Error("response id is empty")
	}
}

func TestModelsCatalogue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	resp, err := http.Get(e.api.URL + "/v1/models")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Object string `json:"object"`
		Data   []struct {
			ID    string `json:"id"`
			Level string `json:"level"`
		} `json:"data"`
	}
	decode(t, resp, &out)

	if out.Object != "list" {
		t.Errorf("object = %q", out.Object)
	}
	levels := make(map[string]string, len(out.Data))
	for _, m := range out.Data {
		levels[m.ID] = m.Level
	}
	if levels["solver"] != "deepthink" || levels["prover"] != "ultrathink" {
		t.Errorf("model catalogue = %v", levels)
	}
}

func TestUnknownModelRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	resp := e.post(t, "/v1/chat/completions", map[string]interface{}{
		"model": "no-such-model",
		"messages": []map[string]interface{}{
			{"role": "user", "content": "Hi"},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown model, got %d", resp.StatusCode)
	}
	if got := e.upstream.CallCount(); got != 0 {
		t.Errorf("upstream was called %d times for an unknown model", got)
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.Enqueue(upstream.Reply{Status: http.StatusInternalServerError, ErrorMessage: "backend on fire"})

	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":   "solver",
		"problem": "What is 2+2?",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 for an upstream 500, got %d", resp.StatusCode)
	}
}

func TestRequestValidationRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)

	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model": "solver",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing problem, got %d", resp.StatusCode)
	}

	var out struct {
		Error struct {
			Param string `json:"param"`
		} `json:"error"`
	}
	decode(t, resp, &out)
	if out.Error.Param != "problem" {
		t.Errorf("error param = %q, want %q", out.Error.Param, "problem")
	}
}

func TestAuthGatesAPIButNotProbes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.Keys = []config.APIKeyConfig{{Key: "secret-key"}}
	})

	resp, err := http.Get(e.api.URL + "/v1/models")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, e.api.URL+"/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with credentials, got %d", resp.StatusCode)
	}

	resp, err = http.Get(e.api.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected open probe, got %d", resp.StatusCode)
	}
}

func TestUsageLedgerRecordsCalls(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.Enqueue(
		upstream.Reply{Content: "The answer is 4."},
		upstream.Reply{Content: passVerdict},
		upstream.Reply{Content: "2+2 equals 4."},
	)

	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":                  "solver",
		"problem":                "What is 2+2?",
		"max_iterations":         1,
		"required_verifications": 1,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Close drains the async writer before we read the store.
	if err := e.recorder.Close(); err != nil {
		t.Fatalf("recorder close failed: %v", err)
	}

	rows, err := e.ledger.Totals(context.Background(), &ledger.Query{})
	if err != nil {
		t.Fatalf("ledger totals failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ledger totals = %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Provider != "mock" || row.Model != "gpt-4o" {
		t.Errorf("totals row for %s/%s, want mock/gpt-4o", row.Provider, row.Model)
	}
	if row.Calls != 3 {
		t.Errorf("ledger calls = %d, want 3", row.Calls)
	}
	if row.Usage.InputTokens != 30 {
		t.Errorf("ledger input tokens = %d, want 30", row.Usage.InputTokens)
	}
	if row.CostUSD <= 0 {
		t.Errorf("ledger cost = %f, want > 0", row.CostUSD)
	}
}

func TestPerRequestRateLimitOverride(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.SetDefault(passVerdict)

	// A fail-strategy window of one admission cannot cover the three
	// calls a minimal run makes.
	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":                  "solver",
		"problem":                "What is 2+2?",
		"max_iterations":         1,
		"required_verifications": 1,
		"rate_limit": map[string]interface{}{
			"window_limit":   1,
			"window_seconds": 60,
			"strategy":       "fail",
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("expected 429 when the window is exhausted, got %d: %s", resp.StatusCode, body)
	}
}

func TestPerRequestZeroQPSBurstOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	e := newEnv(t, nil)
	e.upstream.SetDefault(passVerdict)

	// An explicit qps of zero still configures the bucket: it never
	// refills, so the burst of two cannot cover the three calls a
	// minimal run makes.
	resp := e.post(t, "/reasoning/deepthink", map[string]interface{}{
		"model":                  "solver",
		"problem":                "What is 2+2?",
		"max_iterations":         1,
		"required_verifications": 1,
		"rate_limit": map[string]interface{}{
			"qps":      0,
			"burst":    2,
			"strategy": "fail",
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("expected 429 once the burst is spent, got %d: %s", resp.StatusCode, body)
	}
}
