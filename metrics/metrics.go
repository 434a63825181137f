// Package metrics exposes the service's Prometheus collectors. All helpers
// are nil-receiver safe so instrumentation can be left unwired in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "autopilot_manager"

// Metrics bundles the collectors with the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	passes      *prometheus.CounterVec
	probes      *prometheus.CounterVec
	passSeconds prometheus.Histogram
	boardInfo   *prometheus.GaugeVec
	wsClients   prometheus.Gauge
}

// New builds a private registry with the service collectors plus the standard
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_passes_total",
			Help:      "Completed detection passes by outcome.",
		}, []string{"outcome"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_probes_total",
			Help:      "Per-candidate probe results.",
		}, []string{"platform", "result"}),
		passSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_pass_duration_seconds",
			Help:      "Wall time of a full detection pass.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		boardInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "board_info",
			Help:      "Set to 1 for the currently detected board.",
		}, []string{"platform", "manufacturer"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected status stream clients.",
		}),
	}

	m.registry.MustRegister(
		m.passes,
		m.probes,
		m.passSeconds,
		m.boardInfo,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PassFinished records one completed pass.
func (m *Metrics) PassFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.passSeconds.Observe(elapsed.Seconds())
}

// ProbeObserved records one candidate probe result.
func (m *Metrics) ProbeObserved(platform, result string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(platform, result).Inc()
}

// SetBoard marks the detected board. Any previous board is cleared first so
// at most one series is ever 1.
func (m *Metrics) SetBoard(platform, manufacturer string) {
	if m == nil {
		return
	}
	m.boardInfo.Reset()
	m.boardInfo.WithLabelValues(platform, manufacturer).Set(1)
}

// ClearBoard removes the board info series.
func (m *Metrics) ClearBoard() {
	if m == nil {
		return
	}
	m.boardInfo.Reset()
}

// WSConnected tracks a status stream client attach.
func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

// WSDisconnected tracks a status stream client detach.
func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
