package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricFramesTotal         = "ingest_frames_total"
	MetricDecodeFailuresTotal = "ingest_decode_failures_total"
	MetricSignalsTotal        = "ingest_signals_total"
	MetricSkippedFramesTotal  = "ingest_skipped_frames_total"
	MetricActiveTrackers      = "ingest_active_trackers"
)

// Metrics contains Prometheus metrics for the firehose ingester.
// All operations are thread-safe.
type Metrics struct {
	frames         prometheus.Counter
	decodeFailures prometheus.Counter
	signals        *prometheus.CounterVec
	skippedFrames  prometheus.Counter
	activeTrackers prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFramesTotal,
			Help: "Total number of firehose frames received",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDecodeFailuresTotal,
			Help: "Total number of frames that failed CBOR decoding or validation",
		}),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSignalsTotal,
				Help: "Total number of playback signals handled by action",
			},
			[]string{"action"},
		),
		skippedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSkippedFramesTotal,
			Help: "Total number of non-signal frames skipped",
		}),
		activeTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveTrackers,
			Help: "Number of playback contexts currently being tracked",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.frames,
		m.decodeFailures,
		m.signals,
		m.skippedFrames,
		m.activeTrackers,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncFrames increments the received frame counter.
func (m *Metrics) IncFrames() {
	m.frames.Inc()
}

// IncDecodeFailures increments the decode failure counter.
func (m *Metrics) IncDecodeFailures() {
	m.decodeFailures.Inc()
}

// IncSignals increments the handled signal counter for an action.
func (m *Metrics) IncSignals(action string) {
	m.signals.WithLabelValues(action).Inc()
}

// IncSkippedFrames increments the skipped non-signal frame counter.
func (m *Metrics) IncSkippedFrames() {
	m.skippedFrames.Inc()
}

// SetActiveTrackers sets the active tracker gauge.
func (m *Metrics) SetActiveTrackers(n int) {
	m.activeTrackers.Set(float64(n))
}
