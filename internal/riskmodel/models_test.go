package riskmodel

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/rng"
	"campaignsim/internal/types"
	"campaignsim/internal/workflow"
)

func testGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	g, err := workflow.Compile([]types.WorkflowNode{
		{ID: "research", Type: types.NodeAgent, EstimatedDuration: 60000, FailureRate: 0.02},
		{ID: "content", Type: types.NodeAgent, Dependencies: []string{"research"}, EstimatedDuration: 120000, FailureRate: 0.05},
		{ID: "review", Type: types.NodeValidation, Dependencies: []string{"content"}, EstimatedDuration: 30000, FailureRate: 0.1},
	})
	require.NoError(t, err)
	return g
}

func testWorkspace() types.WorkspaceContext {
	return types.WorkspaceContext{
		WorkspaceID:     "ws-1",
		PrimaryChannels: []string{"linkedin", "email"},
		Budget: types.Budget{
			Currency:  "USD",
			WeeklyCap: 1000,
			HardCap:   4000,
			Breakdown: types.BudgetBreakdown{PaidAds: 1200, ModelSpend: 400, Rendering: 200, ThirdPartyServices: 200},
		},
		ApprovalPolicy: types.ApprovalPolicy{AutoApproveReadinessThreshold: 0.8, CanaryInitialPct: 0.1, CanaryWatchWindowHours: 24},
		RiskProfile:    types.RiskMedium,
		Connectors: []types.Connector{
			{Platform: "LinkedIn", Status: "connected"},
			{Platform: "email", Status: "error"},
		},
	}
}

func TestPrepare(t *testing.T) {
	in, err := Prepare(testWorkspace(), nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 7.0, in.PolicyShape)
	assert.Equal(t, 2000.0, in.CostCenter)
	assert.Equal(t, 0.5, in.ConnectorHealth)
	assert.InDelta(t, 2.0/3.0, in.AgentShare, 1e-12)
	assert.Equal(t, 210000.0, in.BaseDuration)

	targeted, err := Prepare(testWorkspace(), []string{"linkedin"}, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, targeted.ConnectorHealth)
}

func TestPrepare_PolicyShapeAdjustments(t *testing.T) {
	ws := testWorkspace()
	ws.RiskProfile = ""
	ws.ApprovalPolicy.LegalManualApproval = true
	ws.ApprovalPolicy.ManualApprovalForPaid = true
	in, err := Prepare(ws, nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, types.RiskMedium, in.Profile)
	assert.Equal(t, 10.0, in.PolicyShape)

	ws.Budget.Breakdown.PaidAds = 0
	in, err = Prepare(ws, nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 9.0, in.PolicyShape)
}

func TestPrepare_CapsCostCenterAtHardCap(t *testing.T) {
	ws := testWorkspace()
	ws.Budget.Breakdown.PaidAds = 10000
	in, err := Prepare(ws, nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 4000.0, in.CostCenter)
}

func TestPrepare_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.WorkspaceContext)
	}{
		{"unknown profile", func(w *types.WorkspaceContext) { w.RiskProfile = "reckless" }},
		{"negative spend", func(w *types.WorkspaceContext) { w.Budget.Breakdown.Rendering = -1 }},
		{"hard cap below weekly cap", func(w *types.WorkspaceContext) { w.Budget.HardCap = 500 }},
		{"threshold above one", func(w *types.WorkspaceContext) { w.ApprovalPolicy.AutoApproveReadinessThreshold = 1.2 }},
		{"canary pct negative", func(w *types.WorkspaceContext) { w.ApprovalPolicy.CanaryInitialPct = -0.1 }},
		{"negative watch window", func(w *types.WorkspaceContext) { w.ApprovalPolicy.CanaryWatchWindowHours = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := testWorkspace()
			tt.mutate(&ws)
			_, err := Prepare(ws, nil, testGraph(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
		})
	}
}

func TestTrial_Bounds(t *testing.T) {
	g := testGraph(t)
	in, err := Prepare(testWorkspace(), nil, g)
	require.NoError(t, err)

	s := rng.New(3)
	for i := uint64(0); i < 5000; i++ {
		sample := Trial(in, g, s.Trial(i))
		_, ok := sample.Finite()
		require.True(t, ok)
		for _, v := range []float64{sample.ReadinessScore, sample.PolicyPassPct, sample.CitationCoverage, sample.DuplicationRisk, sample.TechnicalReadiness} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
		require.Greater(t, sample.CostEstimate, 0.0)
	}
}

func TestCost_StaysWithinHardCapBand(t *testing.T) {
	g := testGraph(t)
	ws := testWorkspace()
	// Planned spend far above the cap is the worst case for the band.
	ws.Budget.Breakdown.PaidAds = 50000
	in, err := Prepare(ws, nil, g)
	require.NoError(t, err)

	s := rng.New(8)
	costs := make([]float64, 0, 5000)
	sum := 0.0
	for i := uint64(0); i < 5000; i++ {
		c := Trial(in, g, s.Trial(i)).CostEstimate
		costs = append(costs, c)
		sum += c
	}
	sort.Float64s(costs)
	assert.Less(t, costs[int(0.95*float64(len(costs)))], 1.5*ws.Budget.HardCap)
	assert.Less(t, sum/float64(len(costs)), 2*ws.Budget.HardCap)
}

func TestCost_SubUnitHardCap(t *testing.T) {
	g := testGraph(t)
	ws := testWorkspace()
	ws.Budget.WeeklyCap = 0
	ws.Budget.HardCap = 0.5
	ws.Budget.Breakdown = types.BudgetBreakdown{}
	in, err := Prepare(ws, nil, g)
	require.NoError(t, err)
	assert.Equal(t, 0.5, in.CostCenter)

	s := rng.New(13)
	costs := make([]float64, 0, 5000)
	for i := uint64(0); i < 5000; i++ {
		c := Trial(in, g, s.Trial(i)).CostEstimate
		require.Greater(t, c, 0.0)
		costs = append(costs, c)
	}
	sort.Float64s(costs)
	assert.Less(t, costs[int(0.95*float64(len(costs)))], 1.5*ws.Budget.HardCap)
}

func TestPrepare_CostCenterWithoutHardCap(t *testing.T) {
	ws := testWorkspace()
	ws.Budget.WeeklyCap = 0
	ws.Budget.HardCap = 0
	in, err := Prepare(ws, nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, in.CostCenter)

	ws.Budget.Breakdown = types.BudgetBreakdown{}
	in, err = Prepare(ws, nil, testGraph(t))
	require.NoError(t, err)
	assert.Equal(t, 1.0, in.CostCenter)
}

func TestTrial_ReportsFailedNodes(t *testing.T) {
	g, err := workflow.Compile([]types.WorkflowNode{
		{ID: "a", Type: types.NodeAgent, EstimatedDuration: 10, FailureRate: 1},
		{ID: "b", Type: types.NodeAgent, Dependencies: []string{"a"}, EstimatedDuration: 10},
	})
	require.NoError(t, err)
	in, err := Prepare(testWorkspace(), nil, g)
	require.NoError(t, err)
	assert.Equal(t, 2, Trial(in, g, rng.New(1).Trial(0)).FailedNodes)
}

func TestTrial_StricterProfileNeverLowersScores(t *testing.T) {
	g := testGraph(t)
	medium := testWorkspace()
	enterprise := testWorkspace()
	enterprise.RiskProfile = types.RiskEnterprise

	inMedium, err := Prepare(medium, nil, g)
	require.NoError(t, err)
	inEnterprise, err := Prepare(enterprise, nil, g)
	require.NoError(t, err)

	s := rng.New(21)
	for i := uint64(0); i < 2000; i++ {
		a := Trial(inMedium, g, s.Trial(i))
		b := Trial(inEnterprise, g, s.Trial(i))
		require.GreaterOrEqual(t, b.PolicyPassPct, a.PolicyPassPct)
		require.GreaterOrEqual(t, b.ReadinessScore, a.ReadinessScore)
		require.GreaterOrEqual(t, b.CitationCoverage, a.CitationCoverage)
		require.LessOrEqual(t, b.DuplicationRisk, a.DuplicationRisk)
	}
}

func TestTrial_LargerHardCapNeverLowersReadiness(t *testing.T) {
	g := testGraph(t)
	s := rng.New(34)
	for _, caps := range [][2]float64{{1000, 4000}, {2000, 8000}, {4000, 4500}} {
		lo := testWorkspace()
		lo.Budget.HardCap = caps[0]
		hi := testWorkspace()
		hi.Budget.HardCap = caps[1]
		inLo, err := Prepare(lo, nil, g)
		require.NoError(t, err)
		inHi, err := Prepare(hi, nil, g)
		require.NoError(t, err)
		for i := uint64(0); i < 1000; i++ {
			require.GreaterOrEqual(t,
				Trial(inHi, g, s.Trial(i)).ReadinessScore,
				Trial(inLo, g, s.Trial(i)).ReadinessScore,
				"caps %v trial %d", caps, i)
		}
	}
}

func TestTechnicalReadiness_FallsWithFailure(t *testing.T) {
	in := Inputs{ConnectorHealth: 1}
	d := rng.New(1).Trial(1)
	low := TechnicalReadiness(in, workflow.Outcome{FailureEstimate: 0.1}, d)
	high := TechnicalReadiness(in, workflow.Outcome{FailureEstimate: 0.6}, d)
	assert.Greater(t, low, high)
}

func TestCostRisk(t *testing.T) {
	assert.Equal(t, 1.0, CostRisk(Inputs{}, 10))
	assert.Equal(t, 0.25, CostRisk(Inputs{HardCap: 400}, 100))
	assert.Equal(t, 1.0, CostRisk(Inputs{HardCap: 400}, 900))
}

func TestSample_Finite(t *testing.T) {
	name, ok := Sample{CostEstimate: 1}.Finite()
	assert.True(t, ok)
	assert.Empty(t, name)

	name, ok = Sample{TechnicalReadiness: rng.Kumaraswamy(0.5, 0, 1)}.Finite()
	assert.False(t, ok)
	assert.Equal(t, "technicalReadiness", name)
}
