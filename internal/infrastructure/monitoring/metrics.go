package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded by the transport
const (
	DropMalformed       = "malformed"
	DropUnknownChannel  = "unknown_channel"
	DropUnknownSource   = "unknown_source"
	DropUnknownCallback = "unknown_callback"
	DropUnknownType     = "unknown_type"
	DropNotReady        = "not_ready"
	DropDisposed        = "disposed"
	DropPostFailed      = "post_failed"
	DropRateLimited     = "rate_limited"
)

// Metrics holds all Prometheus metrics.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Transport metrics
	FramesReceived   *prometheus.CounterVec
	FramesSent       *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	Handshakes       prometheus.Counter
	Bindings         prometheus.Gauge
	PendingCallbacks prometheus.Gauge

	// Editor metrics
	ViewsActive    prometheus.Gauge
	RemoteRequests *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	FramesReceived int64 `json:"frames_received"`
	FramesSent     int64 `json:"frames_sent"`
	FramesDropped  int64 `json:"frames_dropped"`
	Bindings       int64 `json:"bindings"`
	ViewsActive    int64 `json:"views_active"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remplhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Transport metrics
		FramesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_transport_frames_received_total",
				Help: "Total number of accepted inbound frames",
			},
			[]string{"kind"},
		),
		FramesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_transport_frames_sent_total",
				Help: "Total number of outbound frames",
			},
			[]string{"kind"},
		),
		FramesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_transport_frames_dropped_total",
				Help: "Total number of frames dropped by the transport",
			},
			[]string{"reason"},
		),
		Handshakes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "remplhost_transport_handshakes_total",
				Help: "Total number of accepted handshake frames",
			},
		),
		Bindings: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "remplhost_transport_bindings",
				Help: "Number of endpoints with a channel binding",
			},
		),
		PendingCallbacks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "remplhost_transport_pending_callbacks",
				Help: "Number of outgoing calls awaiting a reply",
			},
		),

		// Editor metrics
		ViewsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "remplhost_views_active",
				Help: "Number of open rempl views",
			},
		),
		RemoteRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_remote_requests_total",
				Help: "Total number of requests received from sandboxes",
			},
			[]string{"method"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "remplhost_ws_connections",
				Help: "Number of active WebSocket endpoints",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remplhost_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "remplhost_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFrameReceived records an accepted inbound frame
func (m *Metrics) RecordFrameReceived(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.FramesReceived++
	m.mu.Unlock()
}

// RecordFrameSent records an outbound frame
func (m *Metrics) RecordFrameSent(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.FramesSent++
	m.mu.Unlock()
}

// RecordFrameDropped records a dropped frame
func (m *Metrics) RecordFrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.FramesDropped++
	m.mu.Unlock()
}

// IncHandshakes increments the accepted handshake counter
func (m *Metrics) IncHandshakes() {
	if m == nil {
		return
	}
	m.Handshakes.Inc()
}

// SetBindings sets the number of live bindings
func (m *Metrics) SetBindings(count int) {
	if m == nil {
		return
	}
	m.Bindings.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Bindings = int64(count)
	m.mu.Unlock()
}

// AddPendingCallbacks adjusts the pending callback gauge by delta
func (m *Metrics) AddPendingCallbacks(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.PendingCallbacks.Add(float64(delta))
}

// SetViewsActive sets the number of open views
func (m *Metrics) SetViewsActive(count int) {
	if m == nil {
		return
	}
	m.ViewsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ViewsActive = int64(count)
	m.mu.Unlock()
}

// RecordRemoteRequest records a request received from a sandbox
func (m *Metrics) RecordRemoteRequest(method string) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(method).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns the current counters for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	uptime := time.Since(m.startTime)
	m.Uptime.Set(uptime.Seconds())

	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = int64(uptime.Seconds())
	return s
}
