package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/riskmodel"
	"campaignsim/internal/rng"
	"campaignsim/internal/types"
)

// sampleSet holds one value per trial for every metric.
type sampleSet struct {
	readiness   []float64
	policy      []float64
	citation    []float64
	duplication []float64
	cost        []float64
	technical   []float64
	overruns    int
	failedNodes int
}

// maxPrealloc bounds the up-front buffer size; larger runs grow by append.
const maxPrealloc = 1 << 14

func newSampleSet(capacity uint64) *sampleSet {
	capacity = min(capacity, maxPrealloc)
	return &sampleSet{
		readiness:   make([]float64, 0, capacity),
		policy:      make([]float64, 0, capacity),
		citation:    make([]float64, 0, capacity),
		duplication: make([]float64, 0, capacity),
		cost:        make([]float64, 0, capacity),
		technical:   make([]float64, 0, capacity),
	}
}

func (s *sampleSet) len() int { return len(s.readiness) }

func (s *sampleSet) add(x riskmodel.Sample, hardCap float64) {
	s.readiness = append(s.readiness, x.ReadinessScore)
	s.policy = append(s.policy, x.PolicyPassPct)
	s.citation = append(s.citation, x.CitationCoverage)
	s.duplication = append(s.duplication, x.DuplicationRisk)
	s.cost = append(s.cost, x.CostEstimate)
	s.technical = append(s.technical, x.TechnicalReadiness)
	if x.CostEstimate > hardCap {
		s.overruns++
	}
	s.failedNodes += x.FailedNodes
}

func (s *sampleSet) merge(o *sampleSet) {
	s.readiness = append(s.readiness, o.readiness...)
	s.policy = append(s.policy, o.policy...)
	s.citation = append(s.citation, o.citation...)
	s.duplication = append(s.duplication, o.duplication...)
	s.cost = append(s.cost, o.cost...)
	s.technical = append(s.technical, o.technical...)
	s.overruns += o.overruns
	s.failedNodes += o.failedNodes
}

type runOutput struct {
	samples *sampleSet
	monitor *monitor
	stop    types.StopReason
}

// splitRound spreads n trials over batches, lowest index first.
func splitRound(n, batches uint32) []uint32 {
	quotas := make([]uint32, batches)
	base, extra := n/batches, n%batches
	for b := range quotas {
		quotas[b] = base
		if uint32(b) < extra {
			quotas[b]++
		}
	}
	return quotas
}

// expired reports whether the caller's context or the wall-clock budget
// has ended the run.
func (e *Engine) expired(ctx context.Context, deadline time.Time) (types.StopReason, bool) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.StopTimedOut, true
		}
		return types.StopCancelled, true
	}
	if !deadline.IsZero() && !e.now().Before(deadline) {
		return types.StopTimedOut, true
	}
	return "", false
}

// runTrials executes the trial loop in rounds. Each round gives every batch
// a contiguous slice of its own trial indices; batches run concurrently with
// private buffers and are merged in batch order once the round completes.
// Batch b's k-th trial always draws from (seed, b, k), so results depend only
// on the seed, the batch count and the check interval.
func (e *Engine) runTrials(ctx context.Context, p prepared, deadline time.Time) (runOutput, error) {
	plan := p.plan
	all := newSampleSet(uint64(plan.iterations))
	mon := newMonitor(plan.threshold, plan.early)

	root := rng.New(plan.seed)
	streams := make([]rng.Stream, plan.batches)
	for b := range streams {
		streams[b] = root.Fork(uint64(b))
	}
	next := make([]uint64, plan.batches)

	perBatch := (uint64(plan.interval) + uint64(plan.batches) - 1) / uint64(plan.batches)
	stop := types.StopCompleted

	for remaining := plan.iterations; remaining > 0; {
		if reason, done := e.expired(ctx, deadline); done {
			stop = reason
			break
		}

		round := uint32(min(uint64(remaining), perBatch*uint64(plan.batches)))
		quotas := splitRound(round, plan.batches)
		buffers := make([]*sampleSet, plan.batches)

		g, gctx := errgroup.WithContext(ctx)
		for b, quota := range quotas {
			if quota == 0 {
				continue
			}
			buf := newSampleSet(uint64(quota))
			buffers[b] = buf
			stream, first := streams[b], next[b]
			g.Go(func() error {
				for k := uint64(0); k < uint64(quota); k++ {
					if _, done := e.expired(gctx, deadline); done {
						return nil
					}
					sample := riskmodel.Trial(p.inputs, p.graph, stream.Trial(first+k))
					if name, ok := sample.Finite(); !ok {
						return apperrors.WithMetadata(apperrors.CodeNumericAnomaly,
							fmt.Sprintf("metric %s is not finite in batch %d trial %d", name, b, first+k),
							map[string]string{"metric": name})
					}
					buf.add(sample, p.inputs.HardCap)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return runOutput{}, err
		}

		completed := uint32(0)
		for b, buf := range buffers {
			if buf == nil {
				continue
			}
			all.merge(buf)
			mon.observe(buf.readiness)
			next[b] += uint64(buf.len())
			completed += uint32(buf.len())
		}
		remaining -= completed

		if completed < round {
			stop, _ = e.expired(ctx, deadline)
			if stop == "" {
				stop = types.StopTimedOut
			}
			break
		}

		se := mon.check()
		e.logger.Debug("convergence check", "samples", all.len(), "stderr", se)
		if mon.converged && remaining > 0 {
			stop = types.StopConverged
			break
		}
	}

	return runOutput{samples: all, monitor: mon, stop: stop}, nil
}
