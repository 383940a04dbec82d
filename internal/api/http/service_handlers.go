package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/catalog"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/notify"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToggleRequest optionally sets a state instead of flipping it.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// ListServices lists the service catalog.
func (h *Handlers) ListServices(c *gin.Context) {
	services := h.catalog.List()
	c.JSON(http.StatusOK, gin.H{
		"services":    services,
		"defaultIcon": h.catalog.DefaultIcon(),
		"total":       len(services),
	})
}

// GetService returns one catalog entry by type.
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.catalog.Get(c.Param("id"))
	if errors.Is(err, catalog.ErrUnknownService) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, svc)
}

// ServiceUserAgent returns the user agent for a service type. Unknown
// types get the platform default.
func (h *Handlers) ServiceUserAgent(c *gin.Context) {
	serviceType := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"type":      serviceType,
		"userAgent": h.catalog.UserAgent(serviceType),
	})
}

// ReloadService asks the UI to reload a service page.
func (h *Handlers) ReloadService(c *gin.Context) {
	serviceID, ok := h.serviceParam(c)
	if !ok {
		return
	}
	delivered := h.ui.Broadcast(notify.EventServiceReload, gin.H{"serviceId": serviceID})
	c.JSON(http.StatusOK, gin.H{"serviceId": serviceID, "delivered": delivered})
}

// ToggleService asks the UI to enable or disable a service.
func (h *Handlers) ToggleService(c *gin.Context) {
	serviceID, ok := h.serviceParam(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if !bindOptional(c, &req) {
		return
	}

	payload := gin.H{"serviceId": serviceID}
	if req.Enabled != nil {
		payload["enabled"] = *req.Enabled
	}
	delivered := h.ui.Broadcast(notify.EventServiceToggle, payload)
	c.JSON(http.StatusOK, gin.H{"serviceId": serviceID, "delivered": delivered})
}

// ToggleServiceNotifications mutes or unmutes a service in the router and
// tells the UI. Without a body the current state is flipped.
func (h *Handlers) ToggleServiceNotifications(c *gin.Context) {
	serviceID, ok := h.serviceParam(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if !bindOptional(c, &req) {
		return
	}

	enabled := h.router.Muted(serviceID)
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	h.router.SetMuted(serviceID, !enabled)

	delivered := h.ui.Broadcast(notify.EventServiceNotifications, gin.H{
		"serviceId": serviceID,
		"enabled":   enabled,
	})
	h.logger.Info("Service notifications toggled",
		zap.String("service_id", serviceID),
		zap.Bool("enabled", enabled),
	)
	c.JSON(http.StatusOK, gin.H{"serviceId": serviceID, "enabled": enabled, "delivered": delivered})
}

func (h *Handlers) serviceParam(c *gin.Context) (string, bool) {
	serviceID := c.Param("id")
	if err := utils.ValidateID(serviceID, "service_id", true); err != nil {
		badRequest(c, err)
		return "", false
	}
	return serviceID, true
}

// bindOptional decodes a JSON body when there is one.
func bindOptional(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}
