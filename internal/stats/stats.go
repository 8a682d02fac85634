// Package stats aggregates per-trial samples into summaries.
//
// Percentiles use linear interpolation between closest ranks: the value at
// p sits at position p*(n-1) of the sorted sample. Every function here is
// order independent, so batches may be merged in any order.
package stats

import (
	"math"
	"sort"

	"campaignsim/internal/types"
)

// Bounds is the natural range of a metric. Confidence limits are clamped to it.
type Bounds struct {
	Lower float64
	Upper float64
}

var (
	Probability = Bounds{Lower: 0, Upper: 1}
	NonNegative = Bounds{Lower: 0, Upper: math.Inf(1)}
)

func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.Lower, math.Min(b.Upper, v))
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopulationStd divides by n, not n-1.
func PopulationStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	varianceSum := 0.0
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(values)))
}

// Percentile expects sorted input and p in [0,1].
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ZScore returns the two-sided standard normal quantile for a confidence
// level in (0,1), e.g. 1.959964 for 0.95.
func ZScore(level float64) float64 {
	if level <= 0 || level >= 1 {
		return math.NaN()
	}
	return math.Sqrt2 * math.Erfinv(level)
}

// Summarize builds the summary for one metric. The confidence interval uses
// the normal approximation mean ± z·std/√n and is clamped to bounds.
func Summarize(values []float64, level float64, bounds Bounds) types.StatisticalSummary {
	n := len(values)
	if n == 0 {
		return types.StatisticalSummary{Confidence: types.ConfidenceInterval{Level: level}}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := Mean(sorted)
	std := PopulationStd(sorted)
	margin := ZScore(level) * std / math.Sqrt(float64(n))

	return types.StatisticalSummary{
		Mean: mean,
		Std:  std,
		Percentiles: types.Percentiles{
			P5:  Percentile(sorted, 0.05),
			P25: Percentile(sorted, 0.25),
			P50: Percentile(sorted, 0.50),
			P75: Percentile(sorted, 0.75),
			P95: Percentile(sorted, 0.95),
		},
		Confidence: types.ConfidenceInterval{
			Lower: bounds.Clamp(mean - margin),
			Upper: bounds.Clamp(mean + margin),
			Level: level,
		},
	}
}

// Running is a Welford accumulator for the mean and population variance.
type Running struct {
	n    uint64
	mean float64
	m2   float64
}

func (r *Running) Add(x float64) {
	r.n++
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

func (r *Running) Count() uint64 { return r.n }
func (r *Running) Mean() float64 { return r.mean }

func (r *Running) PopulationStd() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.n))
}

// StdErr is std/√n, or +Inf before two samples exist.
func (r *Running) StdErr() float64 {
	if r.n < 2 {
		return math.Inf(1)
	}
	return r.PopulationStd() / math.Sqrt(float64(r.n))
}
