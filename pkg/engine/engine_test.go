package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mercator-hq/minerva/pkg/providers"
)

// stubCall captures one provider invocation made by an engine.
type stubCall struct {
	transport   string
	model       string
	messages    []providers.Message
	store       bool
	prevID      string
	format      map[string]interface{}
	temperature *float64
}

func (c stubCall) systemText() string {
	for _, m := range c.messages {
		if m.Role == providers.RoleSystem {
			return providers.ExtractTextContent(m.Content)
		}
	}
	return ""
}

func (c stubCall) userText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == providers.RoleUser {
			return providers.ExtractTextContent(c.messages[i].Content)
		}
	}
	return ""
}

// stubProvider scripts provider behavior for engine tests. Every call is
// recorded in arrival order; respond receives the call and its 1-based
// ordinal among calls to the same model. respond runs outside the lock,
// so scripts may sleep to shape concurrency.
type stubProvider struct {
	name    string
	caps    providers.Capabilities
	respond func(call stubCall, nth int) (*providers.CallResult, error)

	mu    sync.Mutex
	calls []stubCall
}

func newStubProvider(respond func(call stubCall, nth int) (*providers.CallResult, error)) *stubProvider {
	return &stubProvider{
		name:    "stub",
		caps:    providers.Capabilities{SupportsResponses: true, SupportsStreaming: true},
		respond: respond,
	}
}

func (s *stubProvider) record(call stubCall) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	nth := 0
	for _, c := range s.calls {
		if c.model == call.model {
			nth++
		}
	}
	return nth
}

func (s *stubProvider) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubProvider) byModel(model string) []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stubCall
	for _, c := range s.calls {
		if c.model == model {
			out = append(out, c)
		}
	}
	return out
}

func (s *stubProvider) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := stubCall{
		transport:   "chat",
		model:       req.Model,
		messages:    req.Messages,
		temperature: req.Temperature,
	}
	nth := s.record(call)
	return s.respond(call, nth)
}

func (s *stubProvider) ChatStream(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.StreamChunk, error) {
	return nil, fmt.Errorf("streaming is not scripted")
}

func (s *stubProvider) Response(ctx context.Context, req *providers.ResponseRequest) (*providers.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := stubCall{
		transport:   "response",
		model:       req.Model,
		messages:    req.Input,
		store:       req.Store,
		prevID:      req.PreviousResponseID,
		format:      req.ResponseFormat,
		temperature: req.Temperature,
	}
	nth := s.record(call)
	return s.respond(call, nth)
}

func (s *stubProvider) GetName() string { return s.name }
func (s *stubProvider) GetType() string { return "stub" }

func (s *stubProvider) GetCapabilities() providers.Capabilities { return s.caps }

func (s *stubProvider) HealthCheck(ctx context.Context) error { return nil }
func (s *stubProvider) IsHealthy() bool                       { return true }

func (s *stubProvider) GetHealth() providers.ProviderHealth {
	return providers.ProviderHealth{IsHealthy: true}
}

func (s *stubProvider) Close() error { return nil }

// testStageModels gives every stage a distinct model so scripts can
// dispatch on call.model.
func testStageModels() map[string]string {
	return map[string]string{
		StagePlanning:     "m-plan",
		StageInitial:      "m-initial",
		StageVerification: "m-verify",
		StageCorrection:   "m-correct",
		StageSynthesis:    "m-synth",
		StageSummary:      "m-summary",
	}
}

func stubUsage() map[string]interface{} {
	return map[string]interface{}{"input_tokens": 12, "output_tokens": 7}
}

func textResult(content string) *providers.CallResult {
	return &providers.CallResult{Content: content, Usage: stubUsage()}
}

func storedResult(content, responseID string) *providers.CallResult {
	return &providers.CallResult{Content: content, ResponseID: responseID, Usage: stubUsage()}
}

// verdictResult builds a structured verifier response, parsed and as
// JSON text, the way a Responses-capable backend would return it.
func verdictResult(verdict string, confidence float64, issues ...string) *providers.CallResult {
	parsed := map[string]interface{}{
		"verdict":    verdict,
		"confidence": confidence,
	}
	if len(issues) > 0 {
		arr := make([]interface{}, len(issues))
		for i, issue := range issues {
			arr[i] = issue
		}
		parsed["issues"] = arr
	}
	content, _ := json.Marshal(parsed)
	return &providers.CallResult{
		Content:      string(content),
		OutputParsed: parsed,
		Usage:        stubUsage(),
	}
}

// recordingSink collects engine events for assertion.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	name    string
	payload map[string]interface{}
}

func (r *recordingSink) Emit(event string, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	r.events = append(r.events, sinkEvent{name: event, payload: copied})
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

func (r *recordingSink) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (r *recordingSink) first(name string) (map[string]interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e.payload, true
		}
	}
	return nil, false
}
