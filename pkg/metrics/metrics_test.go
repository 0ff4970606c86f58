package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

func TestMetrics_ObserveOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOutcome("Transfer", types.SubmissionStateConfirmed, 2*time.Second)
	m.ObserveOutcome("Transfer", types.SubmissionStateConfirmed, time.Second)
	m.ObserveOutcome("Transfer", types.SubmissionStateRejected, time.Second)
	m.ObserveOutcome("Transfer", types.SubmissionStatePending, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("Transfer", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("Transfer", "rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("Transfer", "pending")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SubmissionDuration))
}

func TestMetrics_InFlightAndResumed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	done := m.TrackStarted()
	m.TrackStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InFlight))
	done()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	m.Resumed(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ResumedTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveOutcome("Issue", types.SubmissionStateConfirmed, time.Second)
		m.Resumed(1)
		m.TrackStarted()()
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
