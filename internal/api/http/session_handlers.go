package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/activity"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/session"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errUnknownSession = errors.New("session not registered")

// RegisterSessionRequest describes the service page living in a partition.
type RegisterSessionRequest struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	ServiceType string `json:"serviceType"`
	URL         string `json:"url"`
}

// SnapshotRequest is the observable state of a service page.
type SnapshotRequest struct {
	Partition string `json:"partition,omitempty"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	URL       string `json:"url"`
}

// VisibleRequest reports that the user is looking at a service page.
type VisibleRequest struct {
	Partition string `json:"partition,omitempty"`
	Title     string `json:"title"`
}

// SessionView is a registered session as reported by the API.
type SessionView struct {
	Partition   string `json:"partition"`
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	ServiceType string `json:"serviceType"`
	UserAgent   string `json:"userAgent"`
}

// RegisterSession starts tracking and monitoring a service session.
func (h *Handlers) RegisterSession(c *gin.Context) {
	partition := c.Param("partition")
	var req RegisterSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.registerSession(partition, req)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) registerSession(partition string, req RegisterSessionRequest) (SessionView, error) {
	if err := utils.ValidatePartition(partition); err != nil {
		return SessionView{}, err
	}
	serviceID := req.ServiceID
	if serviceID == "" {
		serviceID = serviceIDFromPartition(partition)
	}
	if err := utils.ValidateID(serviceID, "serviceId", true); err != nil {
		return SessionView{}, err
	}

	serviceType := req.ServiceType
	if serviceType == "" && req.URL != "" {
		if svc, ok := h.catalog.Resolve(req.URL); ok {
			serviceType = svc.Type
		}
	}
	svc := h.catalog.Lookup(serviceType)
	name := req.ServiceName
	if name == "" {
		name = svc.Name
	}

	h.sessions.Register(session.Info{
		Partition:   partition,
		ServiceName: name,
		ServiceType: serviceType,
		URL:         req.URL,
	})

	want := activity.Session{ID: serviceID, Name: name, Type: serviceType, XPath: svc.BadgeXPath}
	if m, ok := h.activity.Monitor(serviceID); !ok || m.Session() != want {
		h.activity.Register(want)
	}

	// A partition re-bound to another service stops feeding the old one
	if prev, ok := h.serviceFor(partition); ok && prev != serviceID {
		h.activity.Unregister(prev)
	}
	h.bind(partition, serviceID)

	h.logger.Info("Session registered",
		zap.String("partition", partition),
		zap.String("service_id", serviceID),
		zap.String("service_type", serviceType),
	)
	return SessionView{
		Partition:   partition,
		ServiceID:   serviceID,
		ServiceName: name,
		ServiceType: serviceType,
		UserAgent:   h.catalog.UserAgent(serviceType),
	}, nil
}

// UnregisterSession stops tracking a session after a final save.
func (h *Handlers) UnregisterSession(c *gin.Context) {
	partition := c.Param("partition")
	if err := utils.ValidatePartition(partition); err != nil {
		badRequest(c, err)
		return
	}

	saved := h.sessions.Unregister(partition)
	if serviceID, ok := h.unbind(partition); ok {
		h.activity.Unregister(serviceID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "saved": saved})
}

// ListSessions lists the registered sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	partitions := h.sessions.Partitions()
	views := make([]SessionView, 0, len(partitions))
	for _, p := range partitions {
		serviceID, _ := h.serviceFor(p)
		view := SessionView{Partition: p, ServiceID: serviceID}
		if m, ok := h.activity.Monitor(serviceID); ok {
			s := m.Session()
			view.ServiceName, view.ServiceType = s.Name, s.Type
			view.UserAgent = h.catalog.UserAgent(s.Type)
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": views,
		"stats":    h.sessions.Stats(),
	})
}

// GetSession returns the last saved snapshot of a session.
func (h *Handlers) GetSession(c *gin.Context) {
	partition := c.Param("partition")
	if err := utils.ValidatePartition(partition); err != nil {
		badRequest(c, err)
		return
	}

	rec, ok := h.sessions.Get(c.Request.Context(), partition)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved session"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SessionSnapshot feeds a page snapshot to the activity monitor.
func (h *Handlers) SessionSnapshot(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxSnapshotSize)

	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	queued, err := h.snapshot(c.Param("partition"), req)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": queued})
}

func (h *Handlers) snapshot(partition string, req SnapshotRequest) (bool, error) {
	serviceID, ok := h.serviceFor(partition)
	if !ok {
		return false, errUnknownSession
	}
	if err := h.sessions.Touch(partition, req.URL); err != nil {
		h.logger.Debug("Snapshot for untracked partition", zap.String("partition", partition))
	}
	return h.activity.Observe(serviceID, activity.Snapshot{
		Title: req.Title,
		HTML:  req.HTML,
		At:    time.Now(),
	})
}

// SessionVisible clears pending activity for a session the user is
// looking at.
func (h *Handlers) SessionVisible(c *gin.Context) {
	var req VisibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.visible(c.Param("partition"), req.Title); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) visible(partition, title string) error {
	serviceID, ok := h.serviceFor(partition)
	if !ok {
		return errUnknownSession
	}
	return h.activity.Visible(serviceID, title)
}

// SaveSession snapshots a session immediately instead of waiting for the
// next interval.
func (h *Handlers) SaveSession(c *gin.Context) {
	saved, err := h.sessions.SaveNow(c.Request.Context(), c.Param("partition"))
	if errors.Is(err, session.ErrUnknownPartition) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (h *Handlers) sessionError(c *gin.Context, err error) {
	if errors.Is(err, errUnknownSession) || errors.Is(err, activity.ErrUnknownSession) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	badRequest(c, err)
}
