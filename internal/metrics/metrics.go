package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	Passes       *prometheus.CounterVec
	Entries      *prometheus.CounterVec
	PassDuration prometheus.Histogram
	SnapshotSize prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// A custom registry keeps tests isolated from prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingqueue_passes_total",
			Help: "Queue passes by result (completed, suspended, no_base_url, ...).",
		}, []string{"result"}),

		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pingqueue_entries_total",
			Help: "Processed queue entries by outcome.",
		}, []string{"outcome"}),

		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pingqueue_pass_duration_seconds",
			Help:    "Wall time of one queue pass.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		}),

		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pingqueue_snapshot_size",
			Help: "Number of entries read at the start of the last completed pass.",
		}),
	}

	reg.MustRegister(
		m.Passes,
		m.Entries,
		m.PassDuration,
		m.SnapshotSize,
	)

	return m
}

// WorkerHooks adapts the instruments to worker.MetricHooks so the drainer
// stays free of prometheus imports.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnPass: func(result string, d time.Duration, snapshot int) {
			m.Passes.WithLabelValues(result).Inc()
			m.PassDuration.Observe(d.Seconds())
			if result == worker.PassCompleted {
				m.SnapshotSize.Set(float64(snapshot))
			}
		},
		OnEntry: func(o domain.Outcome) {
			m.Entries.WithLabelValues(o.String()).Inc()
		},
	}
}
