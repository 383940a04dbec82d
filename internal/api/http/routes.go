package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts every API route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics/summary", h.MetricsSummary)

	// Storage coordinator
	r.GET("/store/:key", h.LoadValue)
	r.PUT("/store/:key", h.SaveValue)
	r.DELETE("/store/:key", h.DeleteValue)
	r.DELETE("/store", h.ClearStore)

	// Notification router
	r.POST("/notifications", h.ShowNotification)
	r.DELETE("/notifications", h.ClearNotifications)
	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/:serviceId/click", h.ClickNotification)
	r.POST("/notifications/:serviceId/reply", h.ReplyNotification)
	r.POST("/notifications/:serviceId/action", h.NotificationAction)
	r.POST("/window/:event", h.WindowEvent)

	// Service sessions
	r.GET("/sessions", h.ListSessions)
	r.PUT("/sessions/:partition", h.RegisterSession)
	r.DELETE("/sessions/:partition", h.UnregisterSession)
	r.GET("/sessions/:partition", h.GetSession)
	r.POST("/sessions/:partition/snapshot", h.SessionSnapshot)
	r.POST("/sessions/:partition/visible", h.SessionVisible)
	r.POST("/sessions/:partition/save", h.SaveSession)

	// Service catalog and relays
	r.GET("/services", h.ListServices)
	r.GET("/services/:id", h.GetService)
	r.GET("/services/:id/user-agent", h.ServiceUserAgent)
	r.POST("/services/:id/reload", h.ReloadService)
	r.POST("/services/:id/toggle", h.ToggleService)
	r.POST("/services/:id/notifications", h.ToggleServiceNotifications)

	// Web Push
	r.GET("/push/public-key", h.PushPublicKey)
	r.POST("/push/subscriptions", h.Subscribe)
	r.DELETE("/push/subscriptions", h.Unsubscribe)

	// UI logs
	r.POST("/logs", h.StreamLogs)
}
