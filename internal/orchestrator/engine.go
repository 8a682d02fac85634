// Package orchestrator runs campaign-readiness simulations.
//
// An Engine is built from an immutable SimulationConfig and holds no state
// between calls, so engines with equal configs are interchangeable and one
// engine may serve concurrent calls. RunSimulation is CPU bound and performs
// no I/O beyond optional logging.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/riskmodel"
	"campaignsim/internal/stats"
	"campaignsim/internal/types"
	"campaignsim/internal/workflow"
)

const (
	defaultCheckInterval = 100
	maxParallelBatches   = 1024
)

type Engine struct {
	cfg    types.SimulationConfig
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now for the wall-clock budget.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine validates cfg and returns an engine bound to it.
func NewEngine(cfg types.SimulationConfig, opts ...Option) (*Engine, error) {
	if cfg.ParallelBatches == 0 {
		cfg.ParallelBatches = 1
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func validateConfig(cfg types.SimulationConfig) error {
	if cfg.Iterations == 0 {
		return apperrors.New(apperrors.CodeConfiguration, "iterations must be > 0")
	}
	if math.IsNaN(cfg.ConfidenceLevel) || cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		return apperrors.Newf(apperrors.CodeConfiguration, "confidence level %v outside (0,1)", cfg.ConfidenceLevel)
	}
	if cfg.ParallelBatches > maxParallelBatches {
		return apperrors.Newf(apperrors.CodeConfiguration, "parallel batches %d exceeds %d", cfg.ParallelBatches, maxParallelBatches)
	}
	if math.IsNaN(cfg.ConvergenceThreshold) || cfg.ConvergenceThreshold < 0 {
		return apperrors.Newf(apperrors.CodeConfiguration, "convergence threshold %v must be >= 0", cfg.ConvergenceThreshold)
	}
	return nil
}

// Config returns the normalised configuration the engine was built with.
func (e *Engine) Config() types.SimulationConfig { return e.cfg }

// runPlan is the configuration for one call after request overrides.
type runPlan struct {
	iterations uint32
	seed       uint64
	timeout    time.Duration
	batches    uint32
	interval   uint32
	level      float64
	threshold  float64
	early      bool
}

func (e *Engine) plan(req types.SimulationRequest) (runPlan, error) {
	p := runPlan{
		iterations: e.cfg.Iterations,
		seed:       e.cfg.RandomSeed,
		timeout:    time.Duration(e.cfg.TimeoutSeconds) * time.Second,
		batches:    e.cfg.ParallelBatches,
		interval:   e.cfg.CheckInterval,
		level:      e.cfg.ConfidenceLevel,
		threshold:  e.cfg.ConvergenceThreshold,
		early:      e.cfg.EnableEarlyTermination,
	}
	if req.Iterations != nil {
		if *req.Iterations == 0 {
			return runPlan{}, apperrors.New(apperrors.CodeConfiguration, "request iterations must be > 0")
		}
		p.iterations = *req.Iterations
	}
	if req.RandomSeed != nil {
		p.seed = *req.RandomSeed
	}
	if req.TimeoutSeconds != nil {
		p.timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}
	// Batches beyond the trial count would stay idle.
	p.batches = min(p.batches, p.iterations)
	return p, nil
}

// prepared is everything validated before the first trial.
type prepared struct {
	graph  *workflow.Graph
	inputs riskmodel.Inputs
	plan   runPlan
}

func (e *Engine) prepare(ws types.WorkspaceContext, nodes []types.WorkflowNode, req types.SimulationRequest) (prepared, error) {
	p, err := e.plan(req)
	if err != nil {
		return prepared{}, err
	}
	g, err := workflow.Compile(nodes)
	if err != nil {
		return prepared{}, err
	}
	in, err := riskmodel.Prepare(ws, req.TargetChannels, g)
	if err != nil {
		return prepared{}, err
	}
	return prepared{graph: g, inputs: in, plan: p}, nil
}

// Validate runs every pre-trial check and returns the workflow's
// topological order.
func (e *Engine) Validate(ws types.WorkspaceContext, nodes []types.WorkflowNode, req types.SimulationRequest) ([]string, error) {
	p, err := e.prepare(ws, nodes, req)
	if err != nil {
		return nil, err
	}
	return p.graph.Order(), nil
}

// RunSimulation estimates readiness for one campaign.
//
// Configuration problems are returned before any trial runs. When the
// wall-clock budget or ctx ends the run early the result is still returned,
// with Partial set and StopReason naming the cause; only a run that finished
// no trial at all fails with CodePartialResultTimeout. A NaN or infinite
// metric aborts with CodeNumericAnomaly.
func (e *Engine) RunSimulation(ctx context.Context, ws types.WorkspaceContext, nodes []types.WorkflowNode, req types.SimulationRequest) (types.RunResult, error) {
	start := e.now()
	p, err := e.prepare(ws, nodes, req)
	if err != nil {
		return types.RunResult{}, err
	}

	var deadline time.Time
	if p.plan.timeout > 0 {
		deadline = start.Add(p.plan.timeout)
	}

	out, err := e.runTrials(ctx, p, deadline)
	if err != nil {
		return types.RunResult{}, err
	}
	n := out.samples.len()
	if n == 0 {
		return types.RunResult{}, apperrors.Wrap(apperrors.CodePartialResultTimeout,
			fmt.Sprintf("simulation stopped (%s) before any trial completed", out.stop), ctx.Err())
	}

	level := p.plan.level
	result := types.SimulationResult{
		ReadinessScore:     stats.Summarize(out.samples.readiness, level, stats.Probability),
		PolicyPassPct:      stats.Summarize(out.samples.policy, level, stats.Probability),
		CitationCoverage:   stats.Summarize(out.samples.citation, level, stats.Probability),
		DuplicationRisk:    stats.Summarize(out.samples.duplication, level, stats.Probability),
		CostEstimate:       stats.Summarize(out.samples.cost, level, stats.NonNegative),
		TechnicalReadiness: stats.Summarize(out.samples.technical, level, stats.Probability),
		ConvergenceMetrics: out.monitor.metrics(out.stop, p.plan.iterations),
	}
	if err := checkSummaries(result); err != nil {
		return types.RunResult{}, err
	}

	partial := out.stop == types.StopTimedOut || out.stop == types.StopCancelled
	if partial {
		e.logger.Warn("simulation stopped early",
			"reason", out.stop, "samples", n, "requested", p.plan.iterations)
	}

	return types.RunResult{
		Result:                   result,
		Partial:                  partial,
		StopReason:               out.stop,
		SampleCount:              uint32(n),
		RequestedIterations:      p.plan.iterations,
		Seed:                     p.plan.seed,
		ParallelBatches:          p.plan.batches,
		BudgetOverrunProbability: float64(out.samples.overruns) / float64(n),
		Workflow: types.WorkflowSummary{
			Nodes:                    p.graph.Len(),
			CriticalPathMs:           p.graph.CriticalPath(),
			StaticFailureProbability: p.graph.StaticFailureProbability(),
			MeanFailedNodes:          float64(out.samples.failedNodes) / float64(n),
		},
		Elapsed: e.now().Sub(start),
	}, nil
}

func checkSummaries(r types.SimulationResult) error {
	for _, m := range []struct {
		name string
		s    types.StatisticalSummary
	}{
		{"readinessScore", r.ReadinessScore},
		{"policyPassPct", r.PolicyPassPct},
		{"citationCoverage", r.CitationCoverage},
		{"duplicationRisk", r.DuplicationRisk},
		{"costEstimate", r.CostEstimate},
		{"technicalReadiness", r.TechnicalReadiness},
	} {
		p := m.s.Percentiles
		for _, v := range []float64{m.s.Mean, m.s.Std, p.P5, p.P25, p.P50, p.P75, p.P95, m.s.Confidence.Lower, m.s.Confidence.Upper} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return apperrors.WithMetadata(apperrors.CodeNumericAnomaly,
					fmt.Sprintf("summary of %s is not finite", m.name),
					map[string]string{"metric": m.name})
			}
		}
	}
	return nil
}
