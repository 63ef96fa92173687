package api

import (
	notificationDelivery "ipo-reminder-backend/internal/notification/delivery"
	"ipo-reminder-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, notificationHandler *notificationDelivery.NotificationHandler, cfg *config.Config) {
	r.GET("/", notificationHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	notificationDelivery.RegisterRoutes(api, notificationHandler, cfg.AdminJWTSecret)
}
