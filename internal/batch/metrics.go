package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by the generator
type Metrics struct {
	rowsTotal      *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	runsInProgress prometheus.Gauge
}

// NewMetrics creates the generator collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificate_rows_total",
				Help: "Total number of data rows processed, by outcome",
			},
			[]string{"outcome"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificate_runs_total",
				Help: "Total number of generation runs, by final status",
			},
			[]string{"status"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certificate_render_duration_seconds",
				Help:    "Duration of rendering a single certificate",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		runsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "certificate_runs_in_progress",
				Help: "Number of generation runs currently executing",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.rowsTotal, m.runsTotal, m.renderDuration, m.runsInProgress)
	}
	return m
}
