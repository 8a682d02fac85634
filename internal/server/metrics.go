package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campaignsim/internal/types"
)

type metrics struct {
	registry         *prometheus.Registry
	simulationsTotal *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	activeRuns       prometheus.Gauge
	duration         prometheus.Histogram
	samples          prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		simulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaignsim_simulations_total",
				Help: "Simulation calls by outcome",
			},
			[]string{"outcome"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaignsim_decisions_total",
				Help: "Launch decisions by kind",
			},
			[]string{"decision"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaignsim_active_simulations",
				Help: "Simulations currently running",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campaignsim_simulation_duration_seconds",
				Help:    "Wall-clock time per simulation",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		samples: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campaignsim_simulation_samples",
				Help:    "Trials completed per simulation",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.simulationsTotal,
		m.decisionsTotal,
		m.activeRuns,
		m.duration,
		m.samples,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) observeRun(run types.RunResult, analysis types.Analysis) {
	outcome := string(run.StopReason)
	if run.Partial {
		outcome = "partial"
	}
	m.simulationsTotal.WithLabelValues(outcome).Inc()
	m.decisionsTotal.WithLabelValues(string(analysis.Decision)).Inc()
	m.duration.Observe(run.Elapsed.Seconds())
	m.samples.Observe(float64(run.SampleCount))
}

func (m *metrics) observeError(code string) {
	m.simulationsTotal.WithLabelValues("error_" + code).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
