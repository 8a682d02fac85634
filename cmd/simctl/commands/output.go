package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"campaignsim/internal/types"
)

var (
	headerColor   = color.New(color.Bold)
	approveColor  = color.New(color.FgGreen, color.Bold)
	escalateColor = color.New(color.FgYellow, color.Bold)
	warnColor     = color.New(color.FgRed)
)

func printRun(w io.Writer, ws types.WorkspaceContext, run types.RunResult, a types.Analysis) {
	headerColor.Fprintf(w, "Workspace %s  seed=%d  samples=%d/%d  batches=%d  stop=%s\n",
		ws.WorkspaceID, run.Seed, run.SampleCount, run.RequestedIterations, run.ParallelBatches, run.StopReason)
	if run.Partial {
		warnColor.Fprintln(w, "partial result: the run was cut short")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-20s %10s %10s %10s %10s %10s %10s\n", "metric", "mean", "std", "p5", "p50", "p95", "ci")
	r := run.Result
	for _, m := range []struct {
		name string
		s    types.StatisticalSummary
	}{
		{"readiness", r.ReadinessScore},
		{"policy pass", r.PolicyPassPct},
		{"citation coverage", r.CitationCoverage},
		{"duplication risk", r.DuplicationRisk},
		{"technical", r.TechnicalReadiness},
		{"cost (" + ws.Budget.Currency + ")", r.CostEstimate},
	} {
		p := m.s.Percentiles
		fmt.Fprintf(w, "%-20s %10.4g %10.4g %10.4g %10.4g %10.4g  [%.4g, %.4g]\n",
			m.name, m.s.Mean, m.s.Std, p.P5, p.P50, p.P95, m.s.Confidence.Lower, m.s.Confidence.Upper)
	}
	fmt.Fprintln(w)

	c := r.ConvergenceMetrics
	fmt.Fprintf(w, "convergence: converged=%t stderr=%.5f required=%d checks=%d\n",
		c.Converged, c.StandardError, c.RequiredIterations, len(c.Checks))
	fmt.Fprintf(w, "workflow: nodes=%d criticalPath=%.0fms staticFailure=%.3f overrun=%.1f%%\n",
		run.Workflow.Nodes, run.Workflow.CriticalPathMs, run.Workflow.StaticFailureProbability,
		100*run.BudgetOverrunProbability)
	fmt.Fprintln(w)

	switch a.Decision {
	case types.DecisionApprove:
		approveColor.Fprintln(w, "decision: APPROVE")
	default:
		escalateColor.Fprintln(w, "decision: ESCALATE")
	}
	for _, reason := range a.Reasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	if a.Canary != nil {
		fmt.Fprintf(w, "canary: start at %.0f%% and watch for %.0fh\n", 100*a.Canary.InitialPct, a.Canary.WatchWindowHours)
	}
}
