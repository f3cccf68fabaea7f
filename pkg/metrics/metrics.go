package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ContainersLaunchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hihd_containers_launched_total",
			Help: "Total number of containers launched, by honeypot",
		},
		[]string{"honeypot"},
	)

	ContainersStoppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hihd_containers_stopped_total",
			Help: "Total number of containers stopped by the per-session teardown path, by honeypot",
		},
		[]string{"honeypot"},
	)

	OrphansSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hihd_orphans_swept_total",
			Help: "Total number of containers stopped by the orphan sweep during shutdown, by honeypot",
		},
		[]string{"honeypot"},
	)

	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hihd_sessions_active",
			Help: "Current number of active attacker<->container sessions, by honeypot",
		},
		[]string{"honeypot"},
	)

	SessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hihd_sessions_ended_total",
			Help: "Total number of sessions torn down, by honeypot",
		},
		[]string{"honeypot"},
	)

	DialRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hihd_dial_retries_total",
			Help: "Total number of dial-loop retries waiting for a container to start listening, by honeypot",
		},
		[]string{"honeypot"},
	)

	DialDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hihd_dial_duration_seconds",
			Help:    "Time spent in the dial loop waiting for a container's service port to accept a connection, by honeypot",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"honeypot"},
	)
)

func init() {
	prometheus.MustRegister(
		ContainersLaunchedTotal,
		ContainersStoppedTotal,
		OrphansSweptTotal,
		SessionsActive,
		SessionsEndedTotal,
		DialRetriesTotal,
		DialDurationSeconds,
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Collector adapts the package-level metrics to the honeypot.Metrics
// interface, so pkg/honeypot depends only on that interface and never
// imports Prometheus directly.
type Collector struct{}

// NewCollector returns a Collector backed by the package's registered
// metrics.
func NewCollector() *Collector { return &Collector{} }

func (Collector) ContainerLaunched(honeypot string) {
	ContainersLaunchedTotal.WithLabelValues(honeypot).Inc()
}

func (Collector) ContainerStopped(honeypot string) {
	ContainersStoppedTotal.WithLabelValues(honeypot).Inc()
}

func (Collector) SessionStarted(honeypot string) {
	SessionsActive.WithLabelValues(honeypot).Inc()
}

func (Collector) SessionEnded(honeypot string) {
	SessionsActive.WithLabelValues(honeypot).Dec()
	SessionsEndedTotal.WithLabelValues(honeypot).Inc()
}

func (Collector) DialRetry(honeypot string) {
	DialRetriesTotal.WithLabelValues(honeypot).Inc()
}

// DialDuration records how long the dial loop ran, from started until the
// container's service port accepted a connection.
func (Collector) DialDuration(honeypot string, started time.Time) {
	(&Timer{start: started}).ObserveDurationVec(DialDurationSeconds, honeypot)
}

func (Collector) OrphanSwept(honeypot string) {
	OrphansSweptTotal.WithLabelValues(honeypot).Inc()
}
