package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	notificationDelivery "bandscan-backend/internal/notification/delivery"
	notificationUsecasePkg "bandscan-backend/internal/notification/usecase"
	registryDelivery "bandscan-backend/internal/registry/delivery"
	registryUsecasePkg "bandscan-backend/internal/registry/usecase"
	requestDelivery "bandscan-backend/internal/request/delivery"
	requestUsecasePkg "bandscan-backend/internal/request/usecase"
	"bandscan-backend/pkg/config"
)

type Handler struct {
	tokenHandler        *registryDelivery.TokenHandler
	notificationHandler *notificationDelivery.NotificationHandler
	requestHandler      *requestDelivery.RequestHandler
	config              *config.Config
	logger              zerolog.Logger
}

func NewHandler(
	registryUc registryUsecasePkg.RegistryUsecase,
	notificationUc notificationUsecasePkg.NotificationUsecase,
	requestUc requestUsecasePkg.RequestUsecase,
	cfg *config.Config,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		tokenHandler:        registryDelivery.NewTokenHandler(registryUc),
		notificationHandler: notificationDelivery.NewNotificationHandler(notificationUc),
		requestHandler:      requestDelivery.NewRequestHandler(requestUc),
		config:              cfg,
		logger:              logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.tokenHandler, h.notificationHandler, h.requestHandler, h.config)

	h.logger.Info().Str("addr", addr).Msg("api listening")
	return r.Run(addr)
}
