package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLogBatch = 500

// UILogEntry represents a log entry from the UI
type UILogEntry struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
	ServiceID string         `json:"serviceId,omitempty"`
}

// UILogStreamRequest represents a batch of logs from the UI
type UILogStreamRequest struct {
	Source    string       `json:"source"`
	Entries   []UILogEntry `json:"entries"`
	Timestamp int64        `json:"timestamp"`
}

// StreamLogs writes log entries from the shell and its service pages into
// the backend log under the "ui" logger.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req UILogStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log request format"})
		return
	}

	switch req.Source {
	case "ui", "renderer", "main":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log source"})
		return
	}

	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No log entries provided"})
		return
	}
	if len(req.Entries) > maxLogBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many log entries"})
		return
	}

	logger := h.uiLogger.With(zap.String("source", req.Source))
	for _, entry := range req.Entries {
		logUIEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"entries_received":  len(req.Entries),
		"entries_processed": len(req.Entries),
		"timestamp":         time.Now().Unix(),
	})
}

func logUIEntry(logger *zap.Logger, entry UILogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+3)
	fields = append(fields,
		zap.String("ui_log_id", entry.ID),
		zap.String("ui_timestamp", entry.Timestamp),
	)
	if entry.ServiceID != "" {
		fields = append(fields, zap.String("service_id", entry.ServiceID))
	}

	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch strings.ToLower(entry.Level) {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn", "warning":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	case "verbose":
		logger.Debug("[VERBOSE] "+entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
