// Package riskmodel holds the per-trial scoring functions.
//
// Each model reads fixed draw slots, so adding a model never shifts the values
// another model sees. The sampling families are Kumaraswamy distributions
// (Beta-shaped, closed-form inverse CDF). For a fixed uniform the sample is
// monotone in the shape parameter, which keeps same-seed runs coupled trial by
// trial: a stricter profile or a larger hard cap can never lower a score on
// any single trial.
package riskmodel

import (
	"math"
	"strings"

	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/rng"
	"campaignsim/internal/types"
	"campaignsim/internal/workflow"
)

// Draw slots. Workflow nodes start at workflow.SlotOffset.
const (
	SlotPolicy      = 0
	SlotCitation    = 1
	SlotDuplication = 2
	SlotCostA       = 3
	SlotCostB       = 4
	SlotConnector   = 5
)

const (
	policyShapeB = 1.2

	costSigma      = 0.1
	maxCostOverrun = 0.2

	weightPolicy    = 0.40
	weightTechnical = 0.35
	weightCost      = 0.25
)

var policyShapeA = map[types.RiskProfile]float64{
	types.RiskLow:        4,
	types.RiskMedium:     7,
	types.RiskHigh:       9,
	types.RiskEnterprise: 12,
}

// Inputs is everything the models need from the workspace, derived once per
// run.
type Inputs struct {
	Profile         types.RiskProfile
	Strictness      float64
	PolicyShape     float64
	HardCap         float64
	CostCenter      float64
	ConnectorHealth float64
	AgentShare      float64
	BaseDuration    float64
}

// Sample is one trial's value for every metric.
type Sample struct {
	ReadinessScore     float64
	PolicyPassPct      float64
	CitationCoverage   float64
	DuplicationRisk    float64
	CostEstimate       float64
	TechnicalReadiness float64
	// FailedNodes counts workflow nodes that failed in this trial.
	FailedNodes int
}

func configErr(format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeConfiguration, format, args...)
}

func invalidAmount(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Prepare validates the workspace and derives model inputs. An empty risk
// profile is treated as medium.
func Prepare(ws types.WorkspaceContext, targetChannels []string, g *workflow.Graph) (Inputs, error) {
	profile := ws.RiskProfile
	if profile == "" {
		profile = types.RiskMedium
	}
	strictness, ok := profile.Strictness()
	if !ok {
		return Inputs{}, configErr("unknown risk profile %q", ws.RiskProfile)
	}

	b := ws.Budget
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"weeklyCap", b.WeeklyCap},
		{"hardCap", b.HardCap},
		{"paidAds", b.Breakdown.PaidAds},
		{"modelSpend", b.Breakdown.ModelSpend},
		{"rendering", b.Breakdown.Rendering},
		{"thirdPartyServices", b.Breakdown.ThirdPartyServices},
	} {
		if invalidAmount(f.v) {
			return Inputs{}, configErr("budget %s must be a non-negative amount, got %v", f.name, f.v)
		}
	}
	if b.HardCap < b.WeeklyCap {
		return Inputs{}, configErr("budget hardCap %v is below weeklyCap %v", b.HardCap, b.WeeklyCap)
	}

	ap := ws.ApprovalPolicy
	if !unitInterval(ap.AutoApproveReadinessThreshold) {
		return Inputs{}, configErr("autoApproveReadinessThreshold %v outside [0,1]", ap.AutoApproveReadinessThreshold)
	}
	if !unitInterval(ap.CanaryInitialPct) {
		return Inputs{}, configErr("canaryInitialPct %v outside [0,1]", ap.CanaryInitialPct)
	}
	if invalidAmount(ap.CanaryWatchWindowHours) {
		return Inputs{}, configErr("canaryWatchWindowHours must be >= 0, got %v", ap.CanaryWatchWindowHours)
	}

	shape := policyShapeA[profile]
	if ap.LegalManualApproval {
		shape += 2
	}
	if ap.ManualApprovalForPaid && b.Breakdown.PaidAds > 0 {
		shape++
	}

	// The centre is planned spend capped at the hard cap, floored so cost
	// stays positive. The floor never exceeds the cap. A zero hard cap
	// disables the cap and only the floor of 1 applies.
	center := math.Max(b.Breakdown.Total(), 1)
	if b.HardCap > 0 {
		center = math.Max(math.Min(b.Breakdown.Total(), b.HardCap), math.Min(1, b.HardCap))
	}

	channels := targetChannels
	if len(channels) == 0 {
		channels = ws.PrimaryChannels
	}

	return Inputs{
		Profile:         profile,
		Strictness:      strictness,
		PolicyShape:     shape,
		HardCap:         b.HardCap,
		CostCenter:      center,
		ConnectorHealth: connectorHealth(channels, ws.Connectors),
		AgentShare:      g.AgentShare(),
		BaseDuration:    g.CriticalPath(),
	}, nil
}

// connectorHealth is the share of channels backed by a connected connector.
// No channels means nothing external to depend on.
func connectorHealth(channels []string, connectors []types.Connector) float64 {
	if len(channels) == 0 {
		return 1
	}
	live := make(map[string]bool, len(connectors))
	for _, c := range connectors {
		if strings.EqualFold(c.Status, types.ConnectorConnected) {
			live[strings.ToLower(c.Platform)] = true
		}
	}
	healthy := 0
	for _, ch := range channels {
		if live[strings.ToLower(ch)] {
			healthy++
		}
	}
	return float64(healthy) / float64(len(channels))
}

// PolicyPass samples the probability of clearing compliance gates.
func PolicyPass(in Inputs, d *rng.Draws) float64 {
	return rng.Kumaraswamy(d.At(SlotPolicy), in.PolicyShape, policyShapeB)
}

func CitationCoverage(in Inputs, d *rng.Draws) float64 {
	return rng.Kumaraswamy(d.At(SlotCitation), 3+3*in.Strictness, 1.5)
}

// DuplicationRisk centres lower for stricter profiles and higher for
// agent-heavy workflows.
func DuplicationRisk(in Inputs, d *rng.Draws) float64 {
	b := (4 + 6*in.Strictness) * (1 - 0.3*in.AgentShare)
	return rng.Kumaraswamy(d.At(SlotDuplication), 1.5, b)
}

// Cost samples campaign spend in budget currency. The centre is planned
// spend capped at the hard cap; retries stretch it by at most 20% and the
// log-normal noise keeps the 95th percentile under 1.5x the hard cap.
func Cost(in Inputs, out workflow.Outcome, d *rng.Draws) float64 {
	overrun := 1.0
	if in.BaseDuration > 0 {
		stretch := (out.TotalDuration - in.BaseDuration) / in.BaseDuration
		overrun += maxCostOverrun * math.Max(0, math.Min(1, stretch))
	}
	z := d.Normal(SlotCostA, SlotCostB)
	return in.CostCenter * overrun * math.Exp(costSigma*z-costSigma*costSigma/2)
}

// TechnicalReadiness falls as the sampled failure estimate rises.
func TechnicalReadiness(in Inputs, out workflow.Outcome, d *rng.Draws) float64 {
	jitter := 0.98 + 0.02*d.At(SlotConnector)
	v := (1 - out.FailureEstimate) * (0.85 + 0.15*in.ConnectorHealth) * jitter
	return math.Max(0, math.Min(1, v))
}

// CostRisk is spend relative to the hard cap, saturating at 1.
func CostRisk(in Inputs, cost float64) float64 {
	if in.HardCap <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, cost/in.HardCap))
}

// Readiness combines policy, technical readiness and cost pressure.
func Readiness(in Inputs, policy, technical, cost float64) float64 {
	r := CostRisk(in, cost)
	return weightPolicy*policy + weightTechnical*technical + weightCost*(1-r*r)
}

// Trial runs every model once for a single trial.
func Trial(in Inputs, g *workflow.Graph, d *rng.Draws) Sample {
	out := g.Evaluate(d)
	s := Sample{
		PolicyPassPct:      PolicyPass(in, d),
		CitationCoverage:   CitationCoverage(in, d),
		DuplicationRisk:    DuplicationRisk(in, d),
		CostEstimate:       Cost(in, out, d),
		TechnicalReadiness: TechnicalReadiness(in, out, d),
		FailedNodes:        out.Failed,
	}
	s.ReadinessScore = Readiness(in, s.PolicyPassPct, s.TechnicalReadiness, s.CostEstimate)
	return s
}

// Finite reports the first metric that is NaN or infinite.
func (s Sample) Finite() (string, bool) {
	for _, m := range []struct {
		name string
		v    float64
	}{
		{"readinessScore", s.ReadinessScore},
		{"policyPassPct", s.PolicyPassPct},
		{"citationCoverage", s.CitationCoverage},
		{"duplicationRisk", s.DuplicationRisk},
		{"costEstimate", s.CostEstimate},
		{"technicalReadiness", s.TechnicalReadiness},
	} {
		if math.IsNaN(m.v) || math.IsInf(m.v, 0) {
			return m.name, false
		}
	}
	return "", true
}
