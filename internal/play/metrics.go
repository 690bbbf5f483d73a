// Package play provides metrics for play-event recording.
package play

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPlaysAcceptedTotal  = "plays_accepted_total"
	MetricPlaysRejectedTotal  = "plays_rejected_total"
	MetricPlaysDiscardedTotal = "plays_discarded_total"
	MetricAppendFailuresTotal = "play_append_failures_total"
	MetricViewFailuresTotal   = "derived_view_failures_total"
)

// Metrics contains Prometheus metrics for play recording.
// All operations are thread-safe.
type Metrics struct {
	playsAccepted  prometheus.Counter
	playsRejected  prometheus.Counter
	playsDiscarded prometheus.Counter
	appendFailures prometheus.Counter
	viewFailures   *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		playsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlaysAcceptedTotal,
			Help: "Total number of play events accepted and persisted",
		}),
		playsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlaysRejectedTotal,
			Help: "Total number of play submissions rejected by validation",
		}),
		playsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlaysDiscardedTotal,
			Help: "Total number of plays discarded below the minimum-listen threshold",
		}),
		appendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAppendFailuresTotal,
			Help: "Total number of primary history append failures",
		}),
		viewFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricViewFailuresTotal,
				Help: "Total number of derived view update or invalidation failures by view",
			},
			[]string{"view"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.playsAccepted,
		m.playsRejected,
		m.playsDiscarded,
		m.appendFailures,
		m.viewFailures,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncPlaysAccepted increments the accepted plays counter.
func (m *Metrics) IncPlaysAccepted() {
	m.playsAccepted.Inc()
}

// IncPlaysRejected increments the rejected plays counter.
func (m *Metrics) IncPlaysRejected() {
	m.playsRejected.Inc()
}

// IncPlaysDiscarded increments the below-threshold discard counter.
func (m *Metrics) IncPlaysDiscarded() {
	m.playsDiscarded.Inc()
}

// IncAppendFailures increments the history append failure counter.
func (m *Metrics) IncAppendFailures() {
	m.appendFailures.Inc()
}

// IncViewFailures increments the derived view failure counter for a view.
func (m *Metrics) IncViewFailures(view string) {
	m.viewFailures.WithLabelValues(view).Inc()
}
