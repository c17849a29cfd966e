package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bandscan-backend/internal/auth/delivery"
	notificationDelivery "bandscan-backend/internal/notification/delivery"
	registryDelivery "bandscan-backend/internal/registry/delivery"
	requestDelivery "bandscan-backend/internal/request/delivery"
	"bandscan-backend/pkg/config"
)

func SetupRoutes(r *gin.Engine, tokenHandler *registryDelivery.TokenHandler, notificationHandler *notificationDelivery.NotificationHandler, requestHandler *requestDelivery.RequestHandler, cfg *config.Config) {
	auth := delivery.ServiceAuthMiddleware(cfg.APIToken)

	api := r.Group("/api")
	{
		// Health checks (no auth required, used by probes)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/health/queue", requestHandler.GetStats)

		// Device token routes (protected)
		tokens := api.Group("/tokens")
		tokens.Use(auth)
		{
			tokens.POST("/register", tokenHandler.RegisterToken)
			tokens.DELETE("/:token", tokenHandler.UnregisterToken)
			tokens.POST("/:token/ping", tokenHandler.PingToken)
		}

		// Notification routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(auth)
		{
			notifications.POST("/send", notificationHandler.SendNotification)
			notifications.GET("/:bandId", notificationHandler.GetNotifications)
			notifications.GET("/:bandId/:id", notificationHandler.GetNotificationByID)
			notifications.POST("/:bandId/:id/cancel", notificationHandler.CancelNotification)
		}

		// Student request routes (protected)
		requests := api.Group("/requests")
		requests.Use(auth)
		{
			requests.POST("", requestHandler.CreateRequest)
			requests.DELETE("/:id", requestHandler.CancelRequest)
			requests.GET("/stats", requestHandler.GetStats)
		}
	}
}
