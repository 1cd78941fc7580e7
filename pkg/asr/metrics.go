package asr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tencentasr"

// Metrics groups the Prometheus instruments for recognition sessions.
// Construct once per process and share across sessions via WithMetrics.
// All session paths tolerate a nil *Metrics.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	SessionsTotal  prometheus.Counter
	AudioFrames    prometheus.Counter
	AudioBytes     prometheus.Counter
	Events         *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	WriteDuration  prometheus.Histogram
}

// NewMetrics registers the session instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Streaming sessions currently open.",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_total",
			Help:      "Streaming sessions successfully started.",
		}),
		AudioFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audio_frames_total",
			Help:      "Binary audio frames written.",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audio_bytes_total",
			Help:      "Audio payload bytes written.",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Inbound events by classification.",
		}, []string{"kind"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Failures surfaced to the caller or listener, by error kind.",
		}, []string{"kind"}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "write_duration_seconds",
			Help:      "Latency of audio frame writes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) observeWrite(d time.Duration, bytes int) {
	if m == nil {
		return
	}
	m.AudioFrames.Inc()
	m.AudioBytes.Add(float64(bytes))
	m.WriteDuration.Observe(d.Seconds())
}

func (m *Metrics) event(kind EventKind) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) failure(kind ErrorKind) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(string(kind)).Inc()
}
