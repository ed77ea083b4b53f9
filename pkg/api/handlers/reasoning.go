package handlers

import (
	"net/http"
	"time"

	"mercator-hq/minerva/pkg/api"
	"mercator-hq/minerva/pkg/api/middleware"
	"mercator-hq/minerva/pkg/api/types"
	"mercator-hq/minerva/pkg/config"
	"mercator-hq/minerva/pkg/engine"
	"mercator-hq/minerva/pkg/providers"
)

// Endpoint paths as recorded in the usage ledger.
const (
	EndpointDeepThink  = "/reasoning/deepthink"
	EndpointUltraThink = "/reasoning/ultrathink"
)

// DeepThink handles POST /reasoning/deepthink: one iterative
// solve/verify run against the resolved model, with usage metering,
// prefix caching and admission control scoped to this request.
func (d *Deps) DeepThink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := api.ParseDeepThinkRequest(r)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		provider, providerName, backendModel, defaults, err := d.Registry.Resolve(req.Model)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		logger := d.logger().With(
			"request_id", middleware.GetRequestID(r.Context()),
			"model", req.Model,
		)
		scope := d.newRunScope(
			middleware.GetRequestID(r.Context()),
			EndpointDeepThink, engine.ModeDeepThink,
			providerName, backendModel,
			defaults.RPM, req.RateLimit, logger,
		)

		opts := engine.DeepThinkOptions{
			Provider:              provider,
			Model:                 backendModel,
			Problem:               req.Problem,
			History:               toProviderMessages(req.History),
			Knowledge:             req.KnowledgeContext,
			MaxIterations:         intOr(req.MaxIterations, firstPositive(defaults.MaxIterations, config.DefaultDeepThinkMaxIterations)),
			RequiredVerifications: intOr(req.RequiredVerifications, firstPositive(defaults.RequiredVerifications, config.DefaultDeepThinkVerifications)),
			MaxErrors:             firstPositive(defaults.MaxErrors, d.Config.Engine.MaxErrorsBeforeGiveUp),
			EnablePlanning:        boolOr(req.EnablePlanning, defaults.EnablePlanning),
			EnableParallelCheck:   boolOr(req.EnableParallelCheck, defaults.EnableParallelCheck),
			ModelStages:           defaults.ModelStages,
			LLMParams:             req.LLMParams,
			Meter:                 scope.meter,
			Cache:                 scope.cache,
			Limiter:               scope.limiter,
			LimitKey:              scope.limitKey,
			LimitTimeout:          scope.limitTimeout,
			LimitStrategy:         scope.limitStrategy,
			Sink:                  engine.NewLogSink(logger),
		}

		eng, err := engine.NewDeepThink(opts)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		start := time.Now()
		result, err := eng.Run(r.Context())
		col := d.collector()
		if err != nil {
			col.RecordEngineRun(engine.ModeDeepThink, "error")
			col.RecordRequest(providerName, backendModel, "error", time.Since(start))
			logger.Error("deepthink run failed", "error", err)
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		col.RecordEngineRun(engine.ModeDeepThink, "ok")
		col.RecordEngineIterations(engine.ModeDeepThink, result.Iterations)
		for _, rec := range result.VerificationLogs {
			col.RecordVerification(engine.ModeDeepThink, rec.Verdict)
		}
		col.RecordRequest(providerName, backendModel, "ok", time.Since(start))

		d.writeEngineResponse(w, scope, result, logger)
	}
}

// UltraThink handles POST /reasoning/ultrathink: a planned multi-agent
// fan-out with synthesis, sharing one meter, cache and limiter across
// the orchestrator and all agents.
func (d *Deps) UltraThink() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := api.ParseUltraThinkRequest(r)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		provider, providerName, backendModel, defaults, err := d.Registry.Resolve(req.Model)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		logger := d.logger().With(
			"request_id", middleware.GetRequestID(r.Context()),
			"model", req.Model,
		)
		scope := d.newRunScope(
			middleware.GetRequestID(r.Context()),
			EndpointUltraThink, engine.ModeUltraThink,
			providerName, backendModel,
			defaults.RPM, req.RateLimit, logger,
		)

		opts := engine.UltraThinkOptions{
			Provider:                      provider,
			Model:                         backendModel,
			Problem:                       req.Problem,
			History:                       toProviderMessages(req.History),
			Knowledge:                     req.KnowledgeContext,
			NumAgents:                     intOr(req.NumAgents, firstPositive(defaults.NumAgents, config.DefaultNumAgents)),
			ParallelAgents:                intOr(req.ParallelAgents, firstPositive(defaults.ParallelAgents, config.DefaultParallelAgents)),
			MaxIterationsPerAgent:         intOr(req.MaxIterations, firstPositive(defaults.MaxIterations, config.DefaultUltraThinkMaxIterations)),
			RequiredVerificationsPerAgent: intOr(req.RequiredVerifications, firstPositive(defaults.RequiredVerifications, config.DefaultUltraThinkVerifications)),
			EnableParallelCheck:           boolOr(req.EnableParallelCheck, defaults.EnableParallelCheck),
			StrictAgentConfigs:            boolOr(req.StrictAgentConfigs, d.Config.Engine.StrictAgentConfigs),
			ModelStages:                   defaults.ModelStages,
			LLMParams:                     req.LLMParams,
			Meter:                         scope.meter,
			Cache:                         scope.cache,
			Limiter:                       scope.limiter,
			LimitKey:                      scope.limitKey,
			LimitTimeout:                  scope.limitTimeout,
			LimitStrategy:                 scope.limitStrategy,
			Sink:                          engine.NewLogSink(logger),
			Logger:                        logger,
		}

		eng, err := engine.NewUltraThink(opts)
		if err != nil {
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		start := time.Now()
		result, err := eng.Run(r.Context())
		col := d.collector()
		if err != nil {
			col.RecordEngineRun(engine.ModeUltraThink, "error")
			col.RecordRequest(providerName, backendModel, "error", time.Since(start))
			logger.Error("ultrathink run failed", "error", err)
			_ = api.WriteErrorResponse(w, api.HandleError(err))
			return
		}

		col.RecordEngineRun(engine.ModeUltraThink, "ok")
		for _, agent := range result.AgentResults {
			outcome := "incomplete"
			if agent.Result != nil && agent.Result.SuccessfulVerifications >= opts.RequiredVerificationsPerAgent {
				outcome = "verified"
			}
			col.RecordAgentOutcome(engine.ModeUltraThink, outcome)
			if agent.Result != nil {
				col.RecordEngineIterations(engine.ModeUltraThink, agent.Result.Iterations)
				for _, rec := range agent.Result.VerificationLogs {
					col.RecordVerification(engine.ModeUltraThink, rec.Verdict)
				}
			}
		}
		col.RecordRequest(providerName, backendModel, "ok", time.Since(start))

		d.writeEngineResponse(w, scope, result, logger)
	}
}

// writeEngineResponse wraps an engine result with the request's usage
// summary and records per-model cost metrics.
func (d *Deps) writeEngineResponse(w http.ResponseWriter, scope *runScope, result interface{}, logger interface{ Error(string, ...any) }) {
	summary := scope.meter.Summary()

	col := d.collector()
	for providerName, ps := range summary.ByProvider {
		for model, ms := range ps.ByModel {
			col.RecordRequestCost(providerName, model, ms.CostUSD)
		}
	}

	resp := &types.EngineResponse{
		Result:        result,
		Usage:         summary.TotalUsage,
		CostUSD:       summary.TotalCostUSD,
		DetailedUsage: summary.ByProvider,
	}
	if err := api.WriteJSONResponse(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write engine response", "error", err)
	}
}

// toProviderMessages converts wire-form history messages to provider
// messages.
func toProviderMessages(history []types.ChatMessage) []providers.Message {
	if len(history) == 0 {
		return nil
	}
	messages := make([]providers.Message, 0, len(history))
	for _, msg := range history {
		messages = append(messages, providers.Message{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		})
	}
	return messages
}

// intOr resolves a pointer field against its fallback. An explicit
// request value wins, zero included.
func intOr(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}

// boolOr resolves a pointer field against its model default.
func boolOr(p *bool, fallback bool) bool {
	if p != nil {
		return *p
	}
	return fallback
}

// firstPositive returns the first value greater than zero.
func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
