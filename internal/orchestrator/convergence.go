package orchestrator

import (
	"math"

	"campaignsim/internal/stats"
	"campaignsim/internal/types"
)

// monitor tracks the standard error of the readiness mean across rounds.
type monitor struct {
	threshold float64
	early     bool
	running   stats.Running
	checks    []types.ConvergenceCheck
	converged bool
}

func newMonitor(threshold float64, early bool) *monitor {
	return &monitor{threshold: threshold, early: early}
}

func (m *monitor) observe(values []float64) {
	for _, v := range values {
		m.running.Add(v)
	}
}

// check records the current standard error and, when early termination is
// on, whether it has dropped below the threshold.
func (m *monitor) check() float64 {
	se := m.stdErr()
	m.checks = append(m.checks, types.ConvergenceCheck{
		Samples:       uint32(m.running.Count()),
		StandardError: se,
	})
	if m.early && m.running.Count() >= 2 && se < m.threshold {
		m.converged = true
	}
	return se
}

// stdErr is zero until two samples exist so results stay JSON encodable.
func (m *monitor) stdErr() float64 {
	se := m.running.StdErr()
	if math.IsInf(se, 0) {
		return 0
	}
	return se
}

func (m *monitor) metrics(stop types.StopReason, iterations uint32) types.ConvergenceMetrics {
	n := uint32(m.running.Count())
	out := types.ConvergenceMetrics{
		RequiredIterations: n,
		StandardError:      m.stdErr(),
		Checks:             m.checks,
	}
	switch stop {
	case types.StopConverged:
		out.Converged = true
	case types.StopCompleted:
		out.Converged = n >= 2 && out.StandardError < m.threshold
		out.RequiredIterations = iterations
	}
	return out
}
