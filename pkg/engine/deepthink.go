package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercator-hq/minerva/pkg/cache"
	"mercator-hq/minerva/pkg/limits/ratelimit"
	"mercator-hq/minerva/pkg/meter"
	"mercator-hq/minerva/pkg/providers"
)

// Default iteration discipline for a run.
const (
	defaultMaxIterations         = 20
	defaultRequiredVerifications = 3
	defaultMaxErrors             = 10
)

// DeepThinkOptions configures a single-agent run.
type DeepThinkOptions struct {
	// Provider performs all LLM calls. Required.
	Provider providers.Provider

	// Model is the base model id. ModelStages overrides it per stage.
	Model string

	// Problem is the problem statement. Non-string values pass through
	// as message content so multimodal parts survive; prompts use the
	// stringified form.
	Problem interface{}

	// History is prior conversation, inserted between the system prompt
	// and the problem.
	History []providers.Message

	// Knowledge is reference context appended to the system prompt.
	Knowledge string

	// MaxIterations caps solve/verify cycles; zero means the initial
	// attempt runs with no correction passes, negative takes the
	// default (20). RequiredVerifications is the quorum that ends the
	// run early, MaxErrors bounds consecutive failed verifications;
	// zero values for those take the defaults (3, 10).
	MaxIterations         int
	RequiredVerifications int
	MaxErrors             int

	// EnablePlanning runs a planning call before the initial solve and
	// folds the plan into the first prompt.
	EnablePlanning bool

	// EnableParallelCheck races the arithmetic checker with every
	// verification call.
	EnableParallelCheck bool

	ModelStages map[string]string
	LLMParams   map[string]interface{}

	// Meter receives per-call usage. A private meter is created when nil.
	Meter *meter.TokenMeter

	// Cache anchors provider-side prefix reuse. Disabled when nil.
	Cache *cache.Cache

	// Limiter gates every call when set; CallThrottle spaces calls when
	// it is not. LimitKey pins all admissions to one key; empty derives
	// a provider:model key per stage.
	Limiter       *ratelimit.Limiter
	LimitTimeout  time.Duration
	LimitStrategy ratelimit.Strategy
	LimitKey      string
	CallThrottle  time.Duration

	// Checker overrides the built-in arithmetic checker.
	Checker ArithmeticChecker

	// Sink receives progress events. Nil discards them.
	Sink EventSink
}

// DeepThink is the single-agent iterative solver: one initial attempt,
// then verify/correct cycles until the verification quorum, the
// iteration cap or the error budget ends the run, and a closing
// summary call.
type DeepThink struct {
	opts    DeepThinkOptions
	caller  *llmCaller
	cache   *cache.Cache
	checker ArithmeticChecker
}

// NewDeepThink validates options and prepares a run.
func NewDeepThink(opts DeepThinkOptions) (*DeepThink, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if opts.MaxIterations < 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.RequiredVerifications <= 0 {
		opts.RequiredVerifications = defaultRequiredVerifications
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	m := opts.Meter
	if m == nil {
		m = meter.New(nil, meter.Options{})
	}
	store := opts.Cache
	if store == nil {
		store = cache.Disabled()
	}
	var checker ArithmeticChecker
	if opts.EnableParallelCheck {
		checker = opts.Checker
		if checker == nil {
			checker = NewArithmeticChecker()
		}
	}

	return &DeepThink{
		opts: opts,
		caller: &llmCaller{
			provider:      opts.Provider,
			model:         opts.Model,
			stages:        opts.ModelStages,
			params:        opts.LLMParams,
			meter:         m,
			limiter:       opts.Limiter,
			limitTimeout:  opts.LimitTimeout,
			limitStrategy: opts.LimitStrategy,
			limitKey:      opts.LimitKey,
			throttle:      opts.CallThrottle,
		},
		cache:   store,
		checker: checker,
	}, nil
}

// Run executes the solve loop. Any provider error aborts the run and
// propagates; there is no partial result.
func (e *DeepThink) Run(ctx context.Context) (*DeepThinkResult, error) {
	problemText := providers.Stringify(e.opts.Problem)
	result := &DeepThinkResult{Mode: ModeDeepThink}

	plan := ""
	if e.opts.EnablePlanning {
		emit(e.opts.Sink, "planning", map[string]interface{}{"phase": "generate_plan"})
		planRes, err := e.caller.do(ctx, callSpec{
			stage: StagePlanning,
			messages: []providers.Message{
				providers.SystemMessage(ultraThinkPlanPrompt),
				providers.UserMessage(problemText),
			},
		})
		if err != nil {
			return nil, err
		}
		plan = planRes.Content
		emit(e.opts.Sink, "plan_generated", map[string]interface{}{"plan": plan})
	}
	result.Plan = plan

	system := deepThinkInitialPrompt
	if e.opts.Knowledge != "" {
		system += "\n\n### Knowledge ###\n" + e.opts.Knowledge + "\n"
	}

	var userContent interface{} = e.opts.Problem
	if plan != "" {
		userContent = problemText + "\n\n### Proposed approach ###\n" + plan
	}

	messages := make([]providers.Message, 0, len(e.opts.History)+2)
	messages = append(messages, providers.SystemMessage(system))
	messages = append(messages, e.opts.History...)
	messages = append(messages, providers.UserMessage(userContent))
	messages = providers.NormalizeMessages(messages)

	// Prefix cache anchor (Responses only).
	var cacheKey, prevID string
	if e.cache.Enabled() {
		var err error
		cacheKey, err = cache.ComputeKey(
			e.opts.Provider.GetName(),
			e.caller.stageModel(StageInitial),
			system,
			e.opts.Knowledge,
			e.opts.History,
			e.opts.LLMParams,
		)
		if err != nil {
			return nil, err
		}
		prevID = e.cache.GetResponseID(ctx, cacheKey)
	}

	emit(e.opts.Sink, "thinking", map[string]interface{}{"phase": "initial"})
	initRes, err := e.caller.do(ctx, callSpec{
		stage:              StageInitial,
		messages:           messages,
		store:              true,
		previousResponseID: prevID,
		preferResponses:    true,
	})
	if err != nil {
		// A stored response id can expire upstream. Evict the anchor on
		// a non-retriable failure so the next run starts clean.
		if prevID != "" && !providers.IsRetriableKind(providers.KindOf(err)) {
			e.cache.Delete(ctx, cacheKey)
		}
		return nil, err
	}
	if initRes.ResponseID != "" {
		e.cache.SetResponseID(ctx, cacheKey, initRes.ResponseID)
	}
	solution := initRes.Content
	emit(e.opts.Sink, "solution", map[string]interface{}{"iteration": 0})

	record, good, err := e.verify(ctx, problemText, solution)
	if err != nil {
		return nil, err
	}
	result.VerificationLogs = append(result.VerificationLogs, record)

	// The first verification can only win; a failure here does not
	// spend the error budget.
	successes := 0
	if good {
		successes = 1
	}
	errorCount := 0

	it := 1
	for it < e.opts.MaxIterations && successes < e.opts.RequiredVerifications && errorCount < e.opts.MaxErrors {
		emit(e.opts.Sink, "thinking", map[string]interface{}{"phase": "correction", "iteration": it})
		corrRes, err := e.caller.do(ctx, callSpec{
			stage: StageCorrection,
			messages: []providers.Message{
				providers.SystemMessage(deepThinkCorrectPrompt),
				providers.UserMessage(fmt.Sprintf(
					"Problem:\n%s\n\nPrevious solution:\n%s\n\nVerifier feedback:\n%s",
					problemText, solution, verifierFeedback(record),
				)),
			},
			preferResponses: true,
		})
		if err != nil {
			return nil, err
		}
		// An empty correction keeps the previous solution.
		if corrRes.Content != "" {
			solution = corrRes.Content
		}

		record, good, err = e.verify(ctx, problemText, solution)
		if err != nil {
			return nil, err
		}
		result.VerificationLogs = append(result.VerificationLogs, record)
		if good {
			successes++
			errorCount = 0
		} else {
			errorCount++
		}
		it++
	}

	summaryRes, err := e.caller.do(ctx, callSpec{
		stage: StageSummary,
		messages: []providers.Message{
			providers.UserMessage(buildSummaryPrompt(problemText, solution)),
		},
		preferResponses: true,
	})
	if err != nil {
		return nil, err
	}

	result.Iterations = it
	result.SuccessfulVerifications = successes
	result.FinalSolution = solution
	result.Summary = summaryRes.Content
	return result, nil
}

func (e *DeepThink) verify(ctx context.Context, problem, solution string) (VerificationRecord, bool, error) {
	return verifySolution(ctx, e.caller, e.checker, e.opts.EnableParallelCheck, problem, solution)
}

// verifierFeedback renders a verification record for the correction
// prompt: the verdict, plus the verifier's issues when it listed any.
func verifierFeedback(record VerificationRecord) string {
	if len(record.Issues) == 0 {
		return record.Verdict
	}
	return record.Verdict + "\nIssues:\n- " + strings.Join(record.Issues, "\n- ")
}
