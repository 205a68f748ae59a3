// Package telemetry exposes the agent's Prometheus metrics.
//
// Metrics owns a private registry so several agents (or tests) can live in
// one process. Every method is a no-op on a nil *Metrics, which lets
// components take an optional metrics dependency without nil checks.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names, exported for the stats endpoint and tests.
const (
	ReadingsAcceptedTotal  = "pulsebridge_readings_accepted_total"
	ReadingsDiscardedTotal = "pulsebridge_readings_discarded_total"
	ReadingsThrottledTotal = "pulsebridge_readings_throttled_total"
	SinkWritesTotal        = "pulsebridge_sink_writes_total"
	SinkWriteSeconds       = "pulsebridge_sink_write_duration_seconds"
	LastBPM                = "pulsebridge_last_bpm"
	StreamStale            = "pulsebridge_stream_stale"
)

// Metrics holds the agent's collectors.
type Metrics struct {
	registry *prometheus.Registry

	accepted  prometheus.Counter
	discarded prometheus.Counter
	throttled prometheus.Counter
	writes    *prometheus.CounterVec
	latency   prometheus.Histogram
	lastBPM   prometheus.Gauge
	stale     prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ReadingsAcceptedTotal,
			Help: "Positive readings accepted from the sensor.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ReadingsDiscardedTotal,
			Help: "Readings discarded as non-positive or non-finite.",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ReadingsThrottledTotal,
			Help: "Accepted readings not written because the throttle window was open.",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: SinkWritesTotal,
			Help: "Sink writes by outcome.",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    SinkWriteSeconds,
			Help:    "Duration of sink writes.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		lastBPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: LastBPM,
			Help: "Most recent accepted reading.",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: StreamStale,
			Help: "1 while the sensor stream is stale, 0 while fresh.",
		}),
	}
	m.registry.MustRegister(m.accepted, m.discarded, m.throttled, m.writes, m.latency, m.lastBPM, m.stale)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ReadingAccepted(bpm float64) {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.lastBPM.Set(bpm)
}

func (m *Metrics) ReadingDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

func (m *Metrics) ReadingThrottled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}

// WriteFinished records one sink write and how long it took.
func (m *Metrics) WriteFinished(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(result).Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) SetStale(stale bool) {
	if m == nil {
		return
	}
	if stale {
		m.stale.Set(1)
	} else {
		m.stale.Set(0)
	}
}
