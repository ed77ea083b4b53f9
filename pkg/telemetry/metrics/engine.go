package metrics

import (
	"mercator-hq/minerva/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks metrics related to reasoning engine execution.
//
// Metrics:
//   - mercator_minerva_engine_runs_total: Completed runs by engine and outcome
//   - mercator_minerva_engine_iterations_total: Solve iterations by engine
//   - mercator_minerva_engine_verifications_total: Verification rounds by verdict
//   - mercator_minerva_engine_stage_calls_total: Provider calls by engine stage
//   - mercator_minerva_engine_agents_total: Agent outcomes in multi-agent runs
type EngineMetrics struct {
	// Completed engine runs
	runsTotal *prometheus.CounterVec

	// Solve iterations consumed across runs
	iterationsTotal *prometheus.CounterVec

	// Verification rounds and their verdicts
	verificationsTotal *prometheus.CounterVec

	// Provider calls attributed to engine stages
	stageCallsTotal *prometheus.CounterVec

	// Per-agent outcomes within multi-agent runs
	agentsTotal *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_runs_total",
				Help:      "Total number of completed engine runs by outcome",
			},
			[]string{"engine", "status"},
		),

		iterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_iterations_total",
				Help:      "Total number of solve iterations consumed by engine runs",
			},
			[]string{"engine"},
		),

		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_verifications_total",
				Help:      "Total number of verification rounds by verdict",
			},
			[]string{"engine", "verdict"},
		),

		stageCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_stage_calls_total",
				Help:      "Total number of provider calls by engine stage",
			},
			[]string{"engine", "stage"},
		),

		agentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_agents_total",
				Help:      "Total number of agent outcomes within multi-agent runs",
			},
			[]string{"engine", "outcome"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		em.runsTotal,
		em.iterationsTotal,
		em.verificationsTotal,
		em.stageCallsTotal,
		em.agentsTotal,
	)

	return em
}

// RecordRun records a completed engine run.
//
// Parameters:
//   - engine: engine name ("deepthink", "ultrathink")
//   - status: run outcome ("solved", "unsolved", "error")
func (em *EngineMetrics) RecordRun(engine, status string) {
	em.runsTotal.WithLabelValues(engine, status).Inc()
}

// AddIterations adds the iterations consumed by a finished run.
//
// Parameters:
//   - engine: engine name
//   - iterations: solve iterations the run used
func (em *EngineMetrics) AddIterations(engine string, iterations int) {
	if iterations > 0 {
		em.iterationsTotal.WithLabelValues(engine).Add(float64(iterations))
	}
}

// RecordVerification records one verification round.
//
// Parameters:
//   - engine: engine name
//   - verdict: "pass" or "fail"
func (em *EngineMetrics) RecordVerification(engine, verdict string) {
	em.verificationsTotal.WithLabelValues(engine, verdict).Inc()
}

// RecordStageCall records a provider call attributed to an engine stage.
//
// Parameters:
//   - engine: engine name
//   - stage: stage that issued the call ("initial", "planning",
//     "verification", "correction", "parallel_check", "synthesis")
func (em *EngineMetrics) RecordStageCall(engine, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	em.stageCallsTotal.WithLabelValues(engine, stage).Inc()
}

// RecordAgentOutcome records the outcome of a single agent in a
// multi-agent run.
//
// Parameters:
//   - engine: engine name
//   - outcome: "solved", "unsolved" or "error"
func (em *EngineMetrics) RecordAgentOutcome(engine, outcome string) {
	em.agentsTotal.WithLabelValues(engine, outcome).Inc()
}
