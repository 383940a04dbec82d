package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/session"
	"github.com/gin-gonic/gin"
)

// MetricsSnapshot gathers every component's counters in one document.
type MetricsSnapshot struct {
	Timestamp     time.Time                   `json:"timestamp"`
	Storage       []persistence.BackendStatus `json:"storage"`
	Sessions      session.Stats               `json:"sessions"`
	Notifications NotificationSummary         `json:"notifications"`
	Summary       MetricsSummary              `json:"summary"`
}

// NotificationSummary reports the router state.
type NotificationSummary struct {
	Visible  bool  `json:"visible"`
	Tracked  int   `json:"tracked"`
	Shown    int64 `json:"shown"`
	Monitors int   `json:"monitors"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	StorageFailures   int64   `json:"storage_failures"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// MetricsSummary returns the JSON counterpart of /metrics.
func (h *Handlers) MetricsSummary(c *gin.Context) {
	snap := h.metrics.Snapshot()

	errorRate := 0.0
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}

	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Storage:   h.store.Status(),
		Sessions:  h.sessions.Stats(),
		Notifications: NotificationSummary{
			Visible:  h.router.Visible(),
			Tracked:  len(h.router.Tracked()),
			Shown:    snap.NotificationsShown,
			Monitors: len(h.activity.Sessions()),
		},
		Summary: MetricsSummary{
			TotalRequests:     snap.TotalRequests,
			AverageLatencyMs:  snap.AverageLatency(),
			ErrorRate:         errorRate,
			StorageFailures:   snap.StorageFailures,
			ActiveConnections: snap.ActiveConnections,
			UptimeSeconds:     time.Since(h.started).Seconds(),
		},
	})
}
