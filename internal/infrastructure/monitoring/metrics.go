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

const namespace = "textnexus"

// Metrics holds all Prometheus metrics. Every Record/Set method is safe to
// call on a nil *Metrics, so components run unchanged without monitoring.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOps      *prometheus.CounterVec
	StorageDuration *prometheus.HistogramVec
	StorageBackups  *prometheus.CounterVec
	StorageVerify   *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec

	// Notification metrics
	Notifications        *prometheus.CounterVec
	NotificationsTracked prometheus.Gauge
	ActivityEvents       *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsSaved  *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health API
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API
type MetricsSnapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalErrors        int64   `json:"total_errors"`
	StorageFailures    int64   `json:"storage_failures"`
	NotificationsShown int64   `json:"notifications_shown"`
	ActiveConnections  int64   `json:"active_connections"`
	TotalDuration      float64 `json:"-"`
	RequestCount       int64   `json:"-"`
}

// NewMetrics creates a collector backed by its own registry.
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

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		StorageOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Storage backend operations by slot, operation and outcome",
			},
			[]string{"slot", "op", "status"},
		),
		StorageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Storage backend operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"slot", "op"},
		),
		StorageBackups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_backups_total",
				Help:      "Backup-before-overwrite attempts by outcome",
			},
			[]string{"status"},
		),
		StorageVerify: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_verifications_total",
				Help:      "Read-back verifications on the durable slot by outcome",
			},
			[]string{"status"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "storage_breaker_state",
				Help:      "Circuit breaker state per slot (0 closed, 1 half-open, 2 open)",
			},
			[]string{"slot"},
		),

		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification router operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		NotificationsTracked: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifications_tracked",
				Help:      "Notification handles currently tracked",
			},
		),
		ActivityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_events_total",
				Help:      "Activity signals by outcome",
			},
			[]string{"outcome"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of tracked service sessions",
			},
		),
		SessionsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_saved_total",
				Help:      "Session snapshots saved by outcome",
			},
			[]string{"status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Uptime returns the time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
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
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordStorageOp records one operation against a storage slot.
func (m *Metrics) RecordStorageOp(slot, op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StorageOps.WithLabelValues(slot, op, status).Inc()
	m.StorageDuration.WithLabelValues(slot, op).Observe(duration.Seconds())
	if status == StatusError {
		m.mu.Lock()
		m.snapshot.StorageFailures++
		m.mu.Unlock()
	}
}

// RecordBackup records a backup-before-overwrite attempt.
func (m *Metrics) RecordBackup(status string) {
	if m == nil {
		return
	}
	m.StorageBackups.WithLabelValues(status).Inc()
}

// RecordVerification records a read-back comparison.
func (m *Metrics) RecordVerification(status string) {
	if m == nil {
		return
	}
	m.StorageVerify.WithLabelValues(status).Inc()
}

// SetBreakerState records the state of a slot's breaker.
func (m *Metrics) SetBreakerState(slot string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(slot).Set(float64(state))
}

// RecordNotification records a router operation.
func (m *Metrics) RecordNotification(op, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(op, outcome).Inc()
	if op == "show" && outcome == StatusSuccess {
		m.mu.Lock()
		m.snapshot.NotificationsShown++
		m.mu.Unlock()
	}
}

// SetNotificationsTracked sets the number of live handles.
func (m *Metrics) SetNotificationsTracked(count int) {
	if m == nil {
		return
	}
	m.NotificationsTracked.Set(float64(count))
}

// RecordActivity records what happened to an activity signal.
func (m *Metrics) RecordActivity(outcome string) {
	if m == nil {
		return
	}
	m.ActivityEvents.WithLabelValues(outcome).Inc()
}

// SetSessionsActive sets the number of tracked sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// RecordSessionSaved records a session snapshot write.
func (m *Metrics) RecordSessionSaved(status string) {
	if m == nil {
		return
	}
	m.SessionsSaved.WithLabelValues(status).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
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
