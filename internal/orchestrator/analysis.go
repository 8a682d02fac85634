package orchestrator

import (
	"fmt"

	"campaignsim/internal/types"
)

// maxOverrunProbability is the share of trials allowed to exceed the hard cap
// before a launch is escalated.
const maxOverrunProbability = 0.05

// Analyze turns a run into a launch decision. A run is approved only when
// every gate passes; each failed gate adds a reason. Approved runs carry the
// workspace's canary plan.
func Analyze(ws types.WorkspaceContext, run types.RunResult) types.Analysis {
	var reasons []string
	policy := ws.ApprovalPolicy

	if run.Partial {
		reasons = append(reasons, fmt.Sprintf("run stopped early (%s) after %d of %d trials",
			run.StopReason, run.SampleCount, run.RequestedIterations))
	}

	lower := run.Result.ReadinessScore.Confidence.Lower
	if lower < policy.AutoApproveReadinessThreshold {
		reasons = append(reasons, fmt.Sprintf("readiness lower bound %.3f is below auto-approve threshold %.3f",
			lower, policy.AutoApproveReadinessThreshold))
	}

	if policy.LegalManualApproval {
		reasons = append(reasons, "legal review requires manual approval")
	}
	if policy.ManualApprovalForPaid && ws.Budget.Breakdown.PaidAds > 0 {
		reasons = append(reasons, "paid media requires manual approval")
	}

	if run.BudgetOverrunProbability > maxOverrunProbability {
		reasons = append(reasons, fmt.Sprintf("%.1f%% of trials exceed the hard cap",
			100*run.BudgetOverrunProbability))
	}

	if len(reasons) > 0 {
		return types.Analysis{Decision: types.DecisionEscalate, Reasons: reasons}
	}
	return types.Analysis{
		Decision: types.DecisionApprove,
		Reasons: []string{fmt.Sprintf("readiness %.3f (lower bound %.3f) clears threshold %.3f",
			run.Result.ReadinessScore.Mean, lower, policy.AutoApproveReadinessThreshold)},
		Canary: &types.CanaryPlan{
			InitialPct:       policy.CanaryInitialPct,
			WatchWindowHours: policy.CanaryWatchWindowHours,
		},
	}
}
