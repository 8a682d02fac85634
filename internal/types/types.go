package types

import "time"

// SimulationConfig holds engine defaults. Fields can be loaded from the
// environment with config.ParseEnv.
type SimulationConfig struct {
	Iterations             uint32  `json:"iterations" yaml:"iterations" env:"CAMPAIGNSIM_ITERATIONS" envDefault:"1000"`
	RandomSeed             uint64  `json:"randomSeed" yaml:"randomSeed" env:"CAMPAIGNSIM_RANDOM_SEED" envDefault:"42"`
	TimeoutSeconds         uint32  `json:"timeoutSeconds" yaml:"timeoutSeconds" env:"CAMPAIGNSIM_TIMEOUT_SECONDS" envDefault:"30"`
	ConvergenceThreshold   float64 `json:"convergenceThreshold" yaml:"convergenceThreshold" env:"CAMPAIGNSIM_CONVERGENCE_THRESHOLD" envDefault:"0.002"`
	ConfidenceLevel        float64 `json:"confidenceLevel" yaml:"confidenceLevel" env:"CAMPAIGNSIM_CONFIDENCE_LEVEL" envDefault:"0.95"`
	EnableEarlyTermination bool    `json:"enableEarlyTermination" yaml:"enableEarlyTermination" env:"CAMPAIGNSIM_EARLY_TERMINATION" envDefault:"true"`
	ParallelBatches        uint32  `json:"parallelBatches" yaml:"parallelBatches" env:"CAMPAIGNSIM_PARALLEL_BATCHES" envDefault:"4"`
	// CheckInterval is the number of trials, across all batches, between
	// convergence checks.
	CheckInterval uint32 `json:"checkInterval" yaml:"checkInterval" env:"CAMPAIGNSIM_CHECK_INTERVAL" envDefault:"100"`
}

type Goal struct {
	Key    string  `json:"key" yaml:"key"`
	Target float64 `json:"target" yaml:"target"`
	Unit   string  `json:"unit" yaml:"unit"`
}

type BudgetBreakdown struct {
	PaidAds            float64 `json:"paidAds" yaml:"paidAds"`
	ModelSpend         float64 `json:"modelSpend" yaml:"modelSpend"`
	Rendering          float64 `json:"rendering" yaml:"rendering"`
	ThirdPartyServices float64 `json:"thirdPartyServices" yaml:"thirdPartyServices"`
}

// Total is the planned spend across every breakdown line.
func (b BudgetBreakdown) Total() float64 {
	return b.PaidAds + b.ModelSpend + b.Rendering + b.ThirdPartyServices
}

type Budget struct {
	Currency  string          `json:"currency" yaml:"currency"`
	WeeklyCap float64         `json:"weeklyCap" yaml:"weeklyCap"`
	HardCap   float64         `json:"hardCap" yaml:"hardCap"`
	Breakdown BudgetBreakdown `json:"breakdown" yaml:"breakdown"`
}

type ApprovalPolicy struct {
	AutoApproveReadinessThreshold float64 `json:"autoApproveReadinessThreshold" yaml:"autoApproveReadinessThreshold"`
	CanaryInitialPct              float64 `json:"canaryInitialPct" yaml:"canaryInitialPct"`
	CanaryWatchWindowHours        float64 `json:"canaryWatchWindowHours" yaml:"canaryWatchWindowHours"`
	ManualApprovalForPaid         bool    `json:"manualApprovalForPaid" yaml:"manualApprovalForPaid"`
	LegalManualApproval           bool    `json:"legalManualApproval" yaml:"legalManualApproval"`
}

// RiskProfile orders tenants by how strict their compliance expectation is.
type RiskProfile string

const (
	RiskLow        RiskProfile = "low"
	RiskMedium     RiskProfile = "medium"
	RiskHigh       RiskProfile = "high"
	RiskEnterprise RiskProfile = "enterprise"
)

// Strictness maps the profile onto [0,1], low to enterprise.
func (p RiskProfile) Strictness() (float64, bool) {
	switch p {
	case RiskLow:
		return 0, true
	case RiskMedium:
		return 1.0 / 3.0, true
	case RiskHigh:
		return 2.0 / 3.0, true
	case RiskEnterprise:
		return 1, true
	default:
		return 0, false
	}
}

const ConnectorConnected = "connected"

type Connector struct {
	Platform        string    `json:"platform" yaml:"platform"`
	Status          string    `json:"status" yaml:"status"`
	LastConnectedAt time.Time `json:"lastConnectedAt" yaml:"lastConnectedAt"`
}

type WorkspaceContext struct {
	WorkspaceID     string         `json:"workspaceId" yaml:"workspaceId"`
	Goals           []Goal         `json:"goals" yaml:"goals"`
	PrimaryChannels []string       `json:"primaryChannels" yaml:"primaryChannels"`
	Budget          Budget         `json:"budget" yaml:"budget"`
	ApprovalPolicy  ApprovalPolicy `json:"approvalPolicy" yaml:"approvalPolicy"`
	RiskProfile     RiskProfile    `json:"riskProfile" yaml:"riskProfile"`
	Connectors      []Connector    `json:"connectors" yaml:"connectors"`
}

type NodeType string

const (
	NodeAgent      NodeType = "agent"
	NodeValidation NodeType = "validation"
	NodeRender     NodeType = "render"
	NodeAutomation NodeType = "automation"
)

type WorkflowNode struct {
	ID           string   `json:"id" yaml:"id"`
	Type         NodeType `json:"type" yaml:"type"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// EstimatedDuration is in milliseconds.
	EstimatedDuration float64 `json:"estimatedDuration" yaml:"estimatedDuration"`
	FailureRate       float64 `json:"failureRate" yaml:"failureRate"`
}

// SimulationRequest carries per-run overrides. A nil override falls back to
// the engine's SimulationConfig.
type SimulationRequest struct {
	WorkspaceID    string         `json:"workspaceId" yaml:"workspaceId"`
	Workflow       []WorkflowNode `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Iterations     *uint32        `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	RandomSeed     *uint64        `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	TimeoutSeconds *uint32        `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	TargetChannels []string       `json:"targetChannels,omitempty" yaml:"targetChannels,omitempty"`
}

// Scenario bundles everything one simulation call needs. It is the body of
// POST /api/simulate and the layout of scenario files.
type Scenario struct {
	Workspace WorkspaceContext  `json:"workspace" yaml:"workspace"`
	Workflow  []WorkflowNode    `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Request   SimulationRequest `json:"request" yaml:"request"`
}

// Nodes returns the top-level workflow, falling back to the one embedded in
// the request.
func (s Scenario) Nodes() []WorkflowNode {
	if len(s.Workflow) > 0 {
		return s.Workflow
	}
	return s.Request.Workflow
}

type Percentiles struct {
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

type StatisticalSummary struct {
	Mean        float64            `json:"mean"`
	Std         float64            `json:"std"`
	Percentiles Percentiles        `json:"percentiles"`
	Confidence  ConfidenceInterval `json:"confidence"`
}

// ConvergenceCheck is one standard-error reading taken between rounds.
type ConvergenceCheck struct {
	Samples       uint32  `json:"samples"`
	StandardError float64 `json:"standardError"`
}

type ConvergenceMetrics struct {
	Converged          bool               `json:"converged"`
	RequiredIterations uint32             `json:"requiredIterations"`
	StandardError      float64            `json:"standardError"`
	Checks             []ConvergenceCheck `json:"checks,omitempty"`
}

type SimulationResult struct {
	ReadinessScore     StatisticalSummary `json:"readinessScore"`
	PolicyPassPct      StatisticalSummary `json:"policyPassPct"`
	CitationCoverage   StatisticalSummary `json:"citationCoverage"`
	DuplicationRisk    StatisticalSummary `json:"duplicationRisk"`
	CostEstimate       StatisticalSummary `json:"costEstimate"`
	TechnicalReadiness StatisticalSummary `json:"technicalReadiness"`
	ConvergenceMetrics ConvergenceMetrics `json:"convergenceMetrics"`
}

// StopReason tells a converged run apart from a full or a cut-short one.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopConverged StopReason = "converged"
	StopTimedOut  StopReason = "timed_out"
	StopCancelled StopReason = "cancelled"
)

type WorkflowSummary struct {
	Nodes                    int     `json:"nodes"`
	CriticalPathMs           float64 `json:"criticalPathMs"`
	StaticFailureProbability float64 `json:"staticFailureProbability"`
	// MeanFailedNodes is the average number of failed nodes per trial,
	// counting nodes blocked by a failed dependency.
	MeanFailedNodes float64 `json:"meanFailedNodes"`
}

// RunResult is the envelope returned for one simulation call.
type RunResult struct {
	Result SimulationResult `json:"result"`
	// Partial is set when the wall-clock budget or the caller's context
	// ended the run before iterations or convergence were reached.
	Partial                  bool            `json:"partial"`
	StopReason               StopReason      `json:"stopReason"`
	SampleCount              uint32          `json:"sampleCount"`
	RequestedIterations      uint32          `json:"requestedIterations"`
	Seed                     uint64          `json:"seed"`
	ParallelBatches          uint32          `json:"parallelBatches"`
	BudgetOverrunProbability float64         `json:"budgetOverrunProbability"`
	Workflow                 WorkflowSummary `json:"workflow"`
	Elapsed                  time.Duration   `json:"elapsedNs"`
}

type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionEscalate Decision = "escalate"
)

type CanaryPlan struct {
	InitialPct       float64 `json:"initialPct"`
	WatchWindowHours float64 `json:"watchWindowHours"`
}

type Analysis struct {
	Decision Decision    `json:"decision"`
	Reasons  []string    `json:"reasons"`
	Canary   *CanaryPlan `json:"canary,omitempty"`
}

type WSEvent struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"ts,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}
