package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignsim/internal/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	_, err := execute(t, "sample", "-o", path)
	require.NoError(t, err)
	return path
}

func TestSample_Stdout(t *testing.T) {
	out, err := execute(t, "sample")
	require.NoError(t, err)
	assert.Contains(t, out, "workspaceId: ws-demo")
	assert.Contains(t, out, "riskProfile: medium")
}

func TestSimulate_JSON(t *testing.T) {
	path := writeSample(t)
	out, err := execute(t, "simulate", "-f", path, "--iterations", "300", "--seed", "11", "--batches", "2", "--json")
	require.NoError(t, err)

	var res simulateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, uint32(300), res.Result.RequestedIterations)
	assert.Equal(t, uint64(11), res.Result.Seed)
	assert.Equal(t, uint32(2), res.Result.ParallelBatches)
	assert.NotEmpty(t, res.Analysis.Decision)
	assert.Equal(t, 5, res.Result.Workflow.Nodes)
}

func TestSimulate_Table(t *testing.T) {
	path := writeSample(t)
	out, err := execute(t, "simulate", "-f", path, "--iterations", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Workspace ws-demo")
	assert.Contains(t, out, "readiness")
	assert.Contains(t, out, "decision: ")
}

func TestSimulate_EnvDefaults(t *testing.T) {
	t.Setenv("CAMPAIGNSIM_PARALLEL_BATCHES", "3")
	path := writeSample(t)
	out, err := execute(t, "simulate", "-f", path, "--iterations", "60", "--json")
	require.NoError(t, err)

	var res simulateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, uint32(3), res.Result.ParallelBatches)
	assert.Equal(t, uint64(42), res.Result.Seed)
}

func TestSimulate_RequiresFile(t *testing.T) {
	_, err := execute(t, "simulate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
}

func TestValidate(t *testing.T) {
	path := writeSample(t)
	out, err := execute(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "research -> content -> brand-check -> render -> schedule")
}

func TestValidate_Cycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.json")
	sc := types.Scenario{
		Workspace: types.WorkspaceContext{WorkspaceID: "ws-cycle"},
		Workflow: []types.WorkflowNode{
			{ID: "a", Type: types.NodeAgent, Dependencies: []string{"b"}},
			{ID: "b", Type: types.NodeAgent, Dependencies: []string{"a"}},
		},
	}
	b, err := json.Marshal(sc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = execute(t, "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "simctl dev")
}
