// Package scenario reads and writes simulation scenario files. Files are YAML;
// JSON documents load too since the decoder accepts them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"campaignsim/internal/types"
)

// Load reads the scenario at path.
func Load(path string) (types.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	sc, err := Decode(f)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Decode parses one scenario document. Unknown keys are rejected so typos
// surface instead of silently falling back to defaults.
func Decode(r io.Reader) (types.Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc types.Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return types.Scenario{}, errors.New("scenario is empty")
		}
		return types.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Request.WorkspaceID == "" {
		sc.Request.WorkspaceID = sc.Workspace.WorkspaceID
	}
	return sc, nil
}

// Encode renders sc as YAML.
func Encode(sc types.Scenario) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("encode scenario: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sample is a small two-channel launch used by `simctl sample`.
func Sample() types.Scenario {
	connected := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	iterations := uint32(2000)
	return types.Scenario{
		Workspace: types.WorkspaceContext{
			WorkspaceID: "ws-demo",
			Goals: []types.Goal{
				{Key: "qualified_leads", Target: 120, Unit: "leads"},
			},
			PrimaryChannels: []string{"linkedin", "email"},
			Budget: types.Budget{
				Currency:  "USD",
				WeeklyCap: 1000,
				HardCap:   4000,
				Breakdown: types.BudgetBreakdown{
					PaidAds:            1200,
					ModelSpend:         400,
					Rendering:          200,
					ThirdPartyServices: 200,
				},
			},
			ApprovalPolicy: types.ApprovalPolicy{
				AutoApproveReadinessThreshold: 0.8,
				CanaryInitialPct:              0.1,
				CanaryWatchWindowHours:        24,
			},
			RiskProfile: types.RiskMedium,
			Connectors: []types.Connector{
				{Platform: "linkedin", Status: types.ConnectorConnected, LastConnectedAt: connected},
				{Platform: "email", Status: types.ConnectorConnected, LastConnectedAt: connected},
			},
		},
		Workflow: []types.WorkflowNode{
			{ID: "research", Type: types.NodeAgent, EstimatedDuration: 60000, FailureRate: 0.02},
			{ID: "content", Type: types.NodeAgent, Dependencies: []string{"research"}, EstimatedDuration: 120000, FailureRate: 0.05},
			{ID: "brand-check", Type: types.NodeValidation, Dependencies: []string{"content"}, EstimatedDuration: 15000, FailureRate: 0.03},
			{ID: "render", Type: types.NodeRender, Dependencies: []string{"content"}, EstimatedDuration: 45000, FailureRate: 0.04},
			{ID: "schedule", Type: types.NodeAutomation, Dependencies: []string{"brand-check", "render"}, EstimatedDuration: 5000, FailureRate: 0.01},
		},
		Request: types.SimulationRequest{
			WorkspaceID: "ws-demo",
			Iterations:  &iterations,
		},
	}
}
