package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dodancs/bit-hih-docker/pkg/honeypot"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)
	require.GreaterOrEqual(t, timer.Duration(), 20*time.Millisecond)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_timer_observe_duration_seconds",
		Help:    "scratch histogram for TestTimerObserveDuration",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	require.NotPanics(t, func() { timer.ObserveDuration(histogram) })
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_timer_observe_duration_vec_seconds",
			Help:    "scratch histogram vec for TestTimerObserveDurationVec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	require.NotPanics(t, func() { timer.ObserveDurationVec(histogramVec, "test_operation") })
}

func TestCollectorDialDurationObservesHistogram(t *testing.T) {
	c := NewCollector()
	started := time.Now().Add(-50 * time.Millisecond)

	c.DialDuration("ssh", started)

	var metric dto.Metric
	require.NoError(t, DialDurationSeconds.WithLabelValues("ssh").(prometheus.Histogram).Write(&metric))
	require.EqualValues(t, 1, metric.GetHistogram().GetSampleCount())
	require.GreaterOrEqual(t, metric.GetHistogram().GetSampleSum(), 0.05)
}

func TestCollectorSatisfiesHoneypotMetrics(t *testing.T) {
	// Compile-time-shaped check: every event method must be callable without
	// a honeypot name panicking the underlying vec.
	c := NewCollector()
	var _ honeypot.Metrics = c
	require.NotPanics(t, func() {
		c.ContainerLaunched("ssh")
		c.ContainerStopped("ssh")
		c.SessionStarted("ssh")
		c.SessionEnded("ssh")
		c.DialRetry("ssh")
		c.OrphanSwept("ssh")
	})
}
