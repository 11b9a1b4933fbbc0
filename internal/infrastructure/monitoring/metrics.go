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

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Terminal metrics
	TerminalSessions      prometheus.Gauge
	TerminalSessionsTotal prometheus.Counter
	WSMessages            *prometheus.CounterVec

	// Provider metrics
	ProbeFailures *prometheus.CounterVec
	WeatherCalls  *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	ProxyErrors   prometheus.Counter

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for the health endpoint
type Snapshot struct {
	TotalRequests int64 `json:"total_requests"`
	TotalErrors   int64 `json:"total_errors"`
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Terminal metrics
		TerminalSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_terminal_sessions",
				Help: "Number of live terminal sessions",
			},
		),
		TerminalSessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_terminal_sessions_total",
				Help: "Total number of terminal sessions started",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_ws_messages_total",
				Help: "Total number of terminal socket events",
			},
			[]string{"direction", "event"},
		),

		// Provider metrics
		ProbeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_probe_failures_total",
				Help: "System probe sub-readings that fell back to a sentinel",
			},
			[]string{"command"},
		),
		WeatherCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_weather_calls_total",
				Help: "Weather relay lookups by outcome",
			},
			[]string{"outcome"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_notifications_total",
				Help: "Notification sends by category and outcome",
			},
			[]string{"type", "outcome"},
		),
		ProxyErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_proxy_errors_total",
				Help: "Requests the flow editor proxy could not forward",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "portal_uptime_seconds",
			Help: "Portal uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// Snapshot returns the running totals
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// UptimeSeconds returns seconds since the collector was created
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}

// RecordProbeFailure counts a probe command that fell back to a sentinel
func (m *Metrics) RecordProbeFailure(command string) {
	m.ProbeFailures.WithLabelValues(command).Inc()
}

// RecordWeather counts a weather lookup outcome
func (m *Metrics) RecordWeather(outcome string) {
	m.WeatherCalls.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a notification send outcome
func (m *Metrics) RecordNotification(category, outcome string) {
	m.Notifications.WithLabelValues(category, outcome).Inc()
}

// RecordProxyError counts a failed proxy forward
func (m *Metrics) RecordProxyError() {
	m.ProxyErrors.Inc()
}

// RecordWSMessage records a terminal socket event
func (m *Metrics) RecordWSMessage(direction, event string) {
	m.WSMessages.WithLabelValues(direction, event).Inc()
}

// TerminalOpened records a new terminal session
func (m *Metrics) TerminalOpened() {
	m.TerminalSessions.Inc()
	m.TerminalSessionsTotal.Inc()
}

// TerminalClosed records a terminal session teardown
func (m *Metrics) TerminalClosed() {
	m.TerminalSessions.Dec()
}
