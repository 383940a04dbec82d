package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// ReplyRequest carries inline reply text.
type ReplyRequest struct {
	Text string `json:"text"`
}

// ActionRequest carries the index of a pressed notification button.
type ActionRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ShowNotification asks the router to notify about service activity.
func (h *Handlers) ShowNotification(c *gin.Context) {
	var req notification.ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateID(req.ServiceID, "service_id", true); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"shown": h.router.Show(c.Request.Context(), req)})
}

// ListNotifications reports the router state.
func (h *Handlers) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"visible": h.router.Visible(),
		"tracked": h.router.Tracked(),
	})
}

// ClearNotifications closes one service's notification, or all of them
// without a service_id.
func (h *Handlers) ClearNotifications(c *gin.Context) {
	if serviceID := c.Query("service_id"); serviceID != "" {
		h.router.Clear(serviceID)
	} else {
		h.router.ClearAll()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ClickNotification handles a click on a service notification.
func (h *Handlers) ClickNotification(c *gin.Context) {
	serviceID := c.Param("serviceId")
	if err := utils.ValidateID(serviceID, "service_id", true); err != nil {
		badRequest(c, err)
		return
	}
	h.router.Click(serviceID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReplyNotification forwards inline reply text to the service session.
func (h *Handlers) ReplyNotification(c *gin.Context) {
	serviceID := c.Param("serviceId")
	if err := utils.ValidateID(serviceID, "service_id", true); err != nil {
		badRequest(c, err)
		return
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateMessage(req.Text); err != nil {
		badRequest(c, err)
		return
	}

	h.router.Reply(c.Request.Context(), serviceID, req.Text)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// NotificationAction handles a notification button press.
func (h *Handlers) NotificationAction(c *gin.Context) {
	serviceID := c.Param("serviceId")
	if err := utils.ValidateID(serviceID, "service_id", true); err != nil {
		badRequest(c, err)
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.router.Action(serviceID, *req.Index)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// WindowEvent applies a host window transition.
func (h *Handlers) WindowEvent(c *gin.Context) {
	ev, err := notification.ParseWindowEvent(c.Param("event"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.router.WindowEvent(c.Request.Context(), ev); err != nil {
		if errors.Is(err, notification.ErrUnknownWindowEvent) {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "visible": h.router.Visible()})
}
