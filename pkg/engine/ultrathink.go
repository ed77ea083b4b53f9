package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

// Default fan-out shape.
const (
	defaultNumAgents                  = 3
	defaultAgentMaxIterations         = 10
	defaultAgentRequiredVerifications = 2
)

// UltraThinkOptions configures a multi-agent run.
type UltraThinkOptions struct {
	// Provider performs all LLM calls. Required.
	Provider providers.Provider

	// Model is the base model id. ModelStages overrides it per stage and
	// agent configs may override it per agent.
	Model string

	Problem   interface{}
	History   []providers.Message
	Knowledge string

	// NumAgents is how many agent configurations the planner is asked
	// for; ParallelAgents bounds how many solve concurrently. Zero
	// values take the defaults (3, NumAgents).
	NumAgents      int
	ParallelAgents int

	// Per-agent iteration discipline. MaxIterationsPerAgent zero means
	// each agent makes only its initial attempt, negative takes the
	// default (10); RequiredVerificationsPerAgent zero takes the
	// default (2). The per-agent error budget stays at the solver
	// default.
	MaxIterationsPerAgent         int
	RequiredVerificationsPerAgent int

	EnableParallelCheck bool

	// StrictAgentConfigs fails the run when the planner's agent list
	// cannot be parsed, instead of warning and falling back to
	// synthetic configurations.
	StrictAgentConfigs bool

	ModelStages map[string]string
	LLMParams   map[string]interface{}

	// Meter and Cache are shared across the orchestrator and all
	// agents. Private instances are created when nil.
	Meter *meter.TokenMeter
	Cache *cache.Cache

	// Limiter gates every call, orchestrator and agents alike. LimitKey
	// pins all admissions to one key; empty derives a provider:model key
	// per stage.
	Limiter       *ratelimit.Limiter
	LimitTimeout  time.Duration
	LimitStrategy ratelimit.Strategy
	LimitKey      string

	// Checker overrides the built-in arithmetic checker for agents.
	Checker ArithmeticChecker

	// Sink receives progress events. Agent events arrive wrapped as
	// agent_progress with the agent id attached.
	Sink EventSink

	// Logger reports non-fatal conditions such as the agent-config
	// fallback. Nil uses slog.Default().
	Logger *slog.Logger
}

// UltraThink fans a problem out to several DeepThink agents with
// distinct approaches, then synthesizes their solutions into one
// answer.
type UltraThink struct {
	opts   UltraThinkOptions
	caller *llmCaller
	logger *slog.Logger
}

// NewUltraThink validates options and prepares a run.
func NewUltraThink(opts UltraThinkOptions) (*UltraThink, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if opts.NumAgents <= 0 {
		opts.NumAgents = defaultNumAgents
	}
	if opts.ParallelAgents <= 0 {
		opts.ParallelAgents = opts.NumAgents
	}
	if opts.MaxIterationsPerAgent < 0 {
		opts.MaxIterationsPerAgent = defaultAgentMaxIterations
	}
	if opts.RequiredVerificationsPerAgent <= 0 {
		opts.RequiredVerificationsPerAgent = defaultAgentRequiredVerifications
	}
	if opts.Meter == nil {
		opts.Meter = meter.New(nil, meter.Options{})
	}
	if opts.Cache == nil {
		opts.Cache = cache.Disabled()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &UltraThink{
		opts: opts,
		caller: &llmCaller{
			provider:      opts.Provider,
			model:         opts.Model,
			stages:        opts.ModelStages,
			params:        opts.LLMParams,
			meter:         opts.Meter,
			limiter:       opts.Limiter,
			limitTimeout:  opts.LimitTimeout,
			limitStrategy: opts.LimitStrategy,
			limitKey:      opts.LimitKey,
		},
		logger: logger.With("component", "ultrathink"),
	}, nil
}

// Run executes plan, fan-out, synthesis and summary. The first agent
// failure cancels the remaining agents and aborts the run.
func (u *UltraThink) Run(ctx context.Context) (*UltraThinkResult, error) {
	problemText := providers.Stringify(u.opts.Problem)

	plan, err := u.generatePlan(ctx, problemText)
	if err != nil {
		return nil, err
	}

	configs, err := u.generateAgentConfigs(ctx, plan, problemText)
	if err != nil {
		return nil, err
	}

	emit(u.opts.Sink, "agents_running", map[string]interface{}{"num_agents": len(configs)})

	results := make([]AgentResult, len(configs))
	group, groupCtx := errgroup.WithContext(ctx)
	limit := u.opts.ParallelAgents
	if limit < 1 {
		limit = 1
	}
	group.SetLimit(limit)
	for i, cfg := range configs {
		group.Go(func() error {
			res, err := u.runAgent(groupCtx, problemText, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	synthesis, err := u.synthesize(ctx, problemText, results)
	if err != nil {
		return nil, err
	}

	emit(u.opts.Sink, "summary", map[string]interface{}{"phase": "final"})
	summaryRes, err := u.caller.do(ctx, callSpec{
		stage: StageSummary,
		messages: []providers.Message{
			providers.UserMessage(buildSummaryPrompt(problemText, synthesis)),
		},
	})
	if err != nil {
		return nil, err
	}

	return &UltraThinkResult{
		Mode:         ModeUltraThink,
		Plan:         plan,
		NumAgents:    len(configs),
		AgentResults: results,
		Synthesis:    synthesis,
		Summary:      summaryRes.Content,
	}, nil
}

func (u *UltraThink) generatePlan(ctx context.Context, problemText string) (string, error) {
	emit(u.opts.Sink, "planning", map[string]interface{}{"phase": "generate_plan"})

	res, err := u.caller.do(ctx, callSpec{
		stage: StagePlanning,
		messages: []providers.Message{
			providers.SystemMessage(ultraThinkPlanPrompt),
			providers.UserMessage(problemText),
		},
	})
	if err != nil {
		return "", err
	}

	emit(u.opts.Sink, "plan_generated", map[string]interface{}{"plan": res.Content})
	return res.Content, nil
}

func (u *UltraThink) generateAgentConfigs(ctx context.Context, plan, problemText string) ([]agentConfig, error) {
	emit(u.opts.Sink, "planning", map[string]interface{}{"phase": "generate_agents"})

	res, err := u.caller.do(ctx, callSpec{
		stage: StagePlanning,
		messages: []providers.Message{
			providers.SystemMessage(agentConfigPrompt(u.opts.NumAgents)),
			providers.UserMessage(fmt.Sprintf("Plan:\n%s\n\nProblem:\n%s", plan, problemText)),
		},
	})
	if err != nil {
		return nil, err
	}

	configs, parseErr := parseAgentConfigs(res.Content)
	if parseErr != nil {
		if u.opts.StrictAgentConfigs {
			return nil, &AgentConfigError{Output: res.Content, Cause: parseErr}
		}
		u.logger.Warn("agent config output unparseable, using fallback configurations",
			"error", parseErr,
			"num_agents", u.opts.NumAgents)
		configs = fallbackAgentConfigs(u.opts.NumAgents)
	}

	emit(u.opts.Sink, "agents_configured", map[string]interface{}{"num_agents": len(configs)})
	return configs, nil
}

func (u *UltraThink) runAgent(ctx context.Context, problemText string, cfg agentConfig) (AgentResult, error) {
	emit(u.opts.Sink, "agent_start", map[string]interface{}{"agent_id": cfg.AgentID})

	model := cfg.Model
	if model == "" {
		model = u.opts.Model
	}
	params := u.opts.LLMParams
	if len(cfg.LLMParams) > 0 {
		merged := make(map[string]interface{}, len(u.opts.LLMParams)+len(cfg.LLMParams))
		for k, v := range u.opts.LLMParams {
			merged[k] = v
		}
		for k, v := range cfg.LLMParams {
			merged[k] = v
		}
		params = merged
	}

	// Agent events surface on the parent sink as agent_progress with
	// the inner event name folded into the payload.
	agentSink := SinkFunc(func(event string, payload map[string]interface{}) {
		wrapped := make(map[string]interface{}, len(payload)+2)
		wrapped["agent_id"] = cfg.AgentID
		wrapped["event"] = event
		for k, v := range payload {
			wrapped[k] = v
		}
		emit(u.opts.Sink, "agent_progress", wrapped)
	})

	solver, err := NewDeepThink(DeepThinkOptions{
		Provider:              u.opts.Provider,
		Model:                 model,
		Problem:               problemText + "\n\n### Agent Guidance ###\n" + cfg.SpecificPrompt,
		History:               u.opts.History,
		Knowledge:             u.opts.Knowledge,
		MaxIterations:         u.opts.MaxIterationsPerAgent,
		RequiredVerifications: u.opts.RequiredVerificationsPerAgent,
		EnableParallelCheck:   u.opts.EnableParallelCheck,
		ModelStages:           u.opts.ModelStages,
		LLMParams:             params,
		Meter:                 u.opts.Meter,
		Cache:                 u.opts.Cache,
		Limiter:               u.opts.Limiter,
		LimitTimeout:          u.opts.LimitTimeout,
		LimitStrategy:         u.opts.LimitStrategy,
		LimitKey:              u.opts.LimitKey,
		CallThrottle:          cfg.Throttle,
		Checker:               u.opts.Checker,
		Sink:                  agentSink,
	})
	if err != nil {
		return AgentResult{}, err
	}

	result, err := solver.Run(ctx)
	if err != nil {
		return AgentResult{}, err
	}

	emit(u.opts.Sink, "agent_complete", map[string]interface{}{"agent_id": cfg.AgentID})
	return AgentResult{AgentID: cfg.AgentID, Result: result}, nil
}

func (u *UltraThink) synthesize(ctx context.Context, problemText string, results []AgentResult) (string, error) {
	emit(u.opts.Sink, "synthesis", map[string]interface{}{"phase": "synthesize"})

	blocks := make([]string, len(results))
	for i, r := range results {
		solution := ""
		if r.Result != nil {
			solution = r.Result.FinalSolution
		}
		blocks[i] = fmt.Sprintf("### %s ###\n%s", r.AgentID, solution)
	}

	res, err := u.caller.do(ctx, callSpec{
		stage: StageSynthesis,
		messages: []providers.Message{
			providers.SystemMessage(synthesizeResultsPrompt),
			providers.UserMessage(fmt.Sprintf(
				"Problem:\n%s\n\nAgent Solutions:\n%s",
				problemText, strings.Join(blocks, "\n\n---\n\n"),
			)),
		},
	})
	if err != nil {
		return "", err
	}

	emit(u.opts.Sink, "synthesis_complete", map[string]interface{}{})
	return res.Content, nil
}

// agentConfig is one entry of the planner's agent list.
type agentConfig struct {
	AgentID        string
	Approach       string
	SpecificPrompt string

	// Model overrides the base model for this agent when set.
	Model string

	// LLMParams overlays the run's sampling parameters.
	LLMParams map[string]interface{}

	// Throttle is the per-call spacing derived from the config's qps
	// (1/qps) or its explicit throttleSeconds.
	Throttle time.Duration
}

// parseAgentConfigs decodes the planner output. It must be a JSON array
// of objects; anything else, including an empty array, is an error and
// triggers strict failure or the synthetic fallback upstream.
func parseAgentConfigs(text string) ([]agentConfig, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array of agent objects: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("agent config array is empty")
	}

	configs := make([]agentConfig, 0, len(raw))
	for i, entry := range raw {
		cfg := agentConfig{
			AgentID:        stringField(entry, "agentId"),
			Approach:       stringField(entry, "approach"),
			SpecificPrompt: stringField(entry, "specificPrompt"),
			Model:          stringField(entry, "model", "modelOverride"),
			LLMParams:      mapField(entry, "llm_params", "llmParams"),
		}
		if cfg.AgentID == "" {
			cfg.AgentID = fmt.Sprintf("agent-%d", i)
		}
		if qps, ok := toFloat(entry["qps"]); ok && qps > 0 {
			cfg.Throttle = time.Duration(float64(time.Second) / qps)
		} else if ts, ok := toFloat(entry["throttleSeconds"]); ok && ts > 0 {
			cfg.Throttle = time.Duration(ts * float64(time.Second))
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// fallbackAgentConfigs builds n synthetic configurations, numbered from
// one, used when the planner output cannot be parsed.
func fallbackAgentConfigs(n int) []agentConfig {
	configs := make([]agentConfig, n)
	for i := range configs {
		configs[i] = agentConfig{
			AgentID:        fmt.Sprintf("agent-%d", i+1),
			Approach:       fmt.Sprintf("Approach %d", i+1),
			SpecificPrompt: fmt.Sprintf("Solve using method %d", i+1),
		}
	}
	return configs
}

func stringField(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func mapField(entry map[string]interface{}, keys ...string) map[string]interface{} {
	for _, key := range keys {
		if m, ok := entry[key].(map[string]interface{}); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}
