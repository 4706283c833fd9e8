package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Buffer metrics
	BuffersActive    prometheus.Gauge
	BuffersCreated   prometheus.Counter
	BufferFailures   *prometheus.CounterVec
	BufferCloses     *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	DirectoryChanges *prometheus.CounterVec
	Prompts          *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	WSDropped     prometheus.Counter

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveBuffers     int64   `json:"active_buffers"`
	ActiveConnections int64   `json:"active_connections"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webterm_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		BuffersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webterm_buffers_active",
			Help: "Number of live terminal buffers",
		}),
		BuffersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "webterm_buffers_created_total",
			Help: "Total number of terminal buffers created",
		}),
		BufferFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_buffer_start_failures_total",
			Help: "Buffer creations aborted, by failing stage",
		}, []string{"stage"}),
		BufferCloses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_buffer_closes_total",
			Help: "Buffer teardowns, by reason",
		}, []string{"reason"}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_commands_total",
			Help: "Relayed buffer commands",
		}, []string{"command", "status"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webterm_command_duration_seconds",
			Help:    "Relayed buffer command duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2},
		}, []string{"command"}),
		DirectoryChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_directory_changes_total",
			Help: "Working directory changes propagated to the host, by source",
		}, []string{"source"}),
		Prompts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_prompts_total",
			Help: "Host prompts, by tag and outcome",
		}, []string{"tag", "outcome"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webterm_ws_connections",
			Help: "Number of active WebSocket connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webterm_ws_messages_total",
			Help: "Total number of WebSocket messages",
		}, []string{"direction", "type"}),
		WSDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "webterm_ws_dropped_total",
			Help: "Notifications dropped for slow subscribers",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "webterm_uptime_seconds",
		Help: "Server uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// BufferStarted records a successful buffer creation.
func (m *Metrics) BufferStarted() {
	if m == nil {
		return
	}
	m.BuffersCreated.Inc()
	m.BuffersActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveBuffers++
	m.mu.Unlock()
}

// BufferFailed records an aborted buffer creation.
func (m *Metrics) BufferFailed(stage string) {
	if m == nil {
		return
	}
	m.BufferFailures.WithLabelValues(stage).Inc()
}

// BufferClosed records a buffer teardown.
func (m *Metrics) BufferClosed(reason string) {
	if m == nil {
		return
	}
	m.BufferCloses.WithLabelValues(reason).Inc()
	m.BuffersActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveBuffers--
	m.mu.Unlock()
}

// RecordCommand records one relayed command.
func (m *Metrics) RecordCommand(command, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordDirectoryChange records a propagated directory change.
func (m *Metrics) RecordDirectoryChange(source string) {
	if m == nil {
		return
	}
	m.DirectoryChanges.WithLabelValues(source).Inc()
}

// RecordPrompt records a prompt lifecycle step.
func (m *Metrics) RecordPrompt(tag, outcome string) {
	if m == nil {
		return
	}
	m.Prompts.WithLabelValues(tag, outcome).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSDropped counts a notification dropped for a slow subscriber.
func (m *Metrics) IncWSDropped() {
	if m == nil {
		return
	}
	m.WSDropped.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencySeconds = s.totalDuration / float64(s.TotalRequests)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
