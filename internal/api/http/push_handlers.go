package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/notify"
	"github.com/gin-gonic/gin"
)

// UnsubscribeRequest names the subscription to remove.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

func (h *Handlers) pushEnabled(c *gin.Context) bool {
	if h.push == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "web push is disabled"})
		return false
	}
	return true
}

// PushPublicKey returns the VAPID application server key.
func (h *Handlers) PushPublicKey(c *gin.Context) {
	if !h.pushEnabled(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.push.PublicKey()})
}

// Subscribe registers a browser push subscription.
func (h *Handlers) Subscribe(c *gin.Context) {
	if !h.pushEnabled(c) {
		return
	}

	var sub notify.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.push.Subscribe(c.Request.Context(), sub); err != nil {
		if errors.Is(err, notify.ErrInvalidSubscription) {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "subscriptions": len(h.push.Subscriptions())})
}

// Unsubscribe removes a browser push subscription.
func (h *Handlers) Unsubscribe(c *gin.Context) {
	if !h.pushEnabled(c) {
		return
	}

	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": h.push.Unsubscribe(c.Request.Context(), req.Endpoint)})
}
