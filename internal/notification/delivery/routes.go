package delivery

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the operator endpoints on the /api group
func RegisterRoutes(api *gin.RouterGroup, h *NotificationHandler, adminSecret string) {
	api.GET("/health", h.Health)
	api.GET("/stats", h.GetStats)
	api.GET("/ipos/upcoming", h.GetUpcomingIPOs)

	notifications := api.Group("/notifications")
	notifications.Use(AdminAuthMiddleware(adminSecret))
	{
		notifications.POST("/run", h.RunNotifications)
		notifications.POST("/test", h.SendTestNotification)
	}
}
