// Package metrics exposes prometheus collectors for tracked ledger submissions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const namespace = "ledgertx"

// Metrics records submission outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	ResumedTotal       prometheus.Counter
	InFlight           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Tracked submissions by schema and final state",
		}, []string{"schema", "state"}),
		SubmissionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time from journaling a submission to its final state",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"schema"}),
		ResumedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumed_submissions_total",
			Help:      "Pending submissions picked up again after a restart",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submissions_in_flight",
			Help:      "Submissions currently being tracked",
		}),
	}
}

// ObserveOutcome counts a submission that reached state. Pending outcomes are ignored.
func (m *Metrics) ObserveOutcome(schema string, state types.SubmissionState, elapsed time.Duration) {
	if m == nil || !state.IsTerminal() {
		return
	}
	m.SubmissionsTotal.WithLabelValues(schema, string(state)).Inc()
	m.SubmissionDuration.WithLabelValues(schema).Observe(elapsed.Seconds())
}

func (m *Metrics) Resumed(n int) {
	if m == nil {
		return
	}
	m.ResumedTotal.Add(float64(n))
}

// TrackStarted marks a submission in flight and returns the func that ends it
func (m *Metrics) TrackStarted() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
