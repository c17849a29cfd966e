package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	api "bandscan-backend/cmd/api"
	notificationdomain "bandscan-backend/internal/notification/domain"
	"bandscan-backend/internal/notification/dispatch"
	notificationRepo "bandscan-backend/internal/notification/repository"
	notificationUsecasePkg "bandscan-backend/internal/notification/usecase"
	"bandscan-backend/internal/registry/cache"
	registrydomain "bandscan-backend/internal/registry/domain"
	registryRepo "bandscan-backend/internal/registry/repository"
	registryUsecasePkg "bandscan-backend/internal/registry/usecase"
	"bandscan-backend/internal/request/apply"
	requestdomain "bandscan-backend/internal/request/domain"
	requestRepo "bandscan-backend/internal/request/repository"
	requestUsecasePkg "bandscan-backend/internal/request/usecase"
	"bandscan-backend/internal/request/worker"
	"bandscan-backend/pkg/apns"
	"bandscan-backend/pkg/config"
	"bandscan-backend/pkg/database"
	"bandscan-backend/pkg/fcm"
	"bandscan-backend/pkg/push"
	"bandscan-backend/pkg/sheets"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	if cfg.APIToken == "" {
		logger.Fatal().Msg("BANDSCAN_API_TOKEN must be set")
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&registrydomain.DeviceToken{}, &notificationdomain.Notification{}, &requestdomain.StudentRequest{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize repositories (dependency injection)
	var tokenRepo registryRepo.DeviceTokenRepository = registryRepo.NewDeviceTokenRepository(db)
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, token cache disabled")
		} else {
			tokenRepo = cache.NewCachedDeviceTokenRepository(tokenRepo, redisClient, cfg.CacheTTL, logger)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("token cache enabled")
		}
	}
	notificationRepository := notificationRepo.NewGormNotificationRepository(db)
	requestRepository := requestRepo.NewGormRequestRepository(db)

	registryUc := registryUsecasePkg.NewRegistryUsecase(tokenRepo, cfg.TokenStaleness, logger)

	// Initialize push providers. Each platform is optional; an unconfigured
	// provider just means those members count as failed in summaries.
	var providers []push.Provider
	if cfg.FirebaseCredentials != "" {
		messagingClient, err := fcm.NewMessagingClient(context.Background(), cfg.FirebaseCredentials)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize FCM client, android pushes disabled")
		} else {
			providers = append(providers, fcm.New(messagingClient, cfg.ProviderTimeout, logger))
		}
	} else {
		logger.Warn().Msg("no Firebase credentials configured, android pushes disabled")
	}
	if cfg.APNSKeyFile != "" {
		apnsClient, err := apns.New(apns.Config{
			KeyFile:       cfg.APNSKeyFile,
			KeyID:         cfg.APNSKeyID,
			TeamID:        cfg.APNSTeamID,
			Topic:         cfg.APNSTopic,
			Sandbox:       cfg.APNSUseSandbox,
			TokenValidity: cfg.APNSTokenValidity,
			RenewalMargin: cfg.APNSRenewalMargin,
		}, cfg.ProviderTimeout, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize APNs client, ios pushes disabled")
		} else {
			providers = append(providers, apnsClient)
		}
	} else {
		logger.Warn().Msg("no APNs key configured, ios pushes disabled")
	}

	ctx := context.Background()

	// Start the notification dispatcher
	dispatcher := dispatch.NewDispatcher(notificationRepository, registryUc, providers, dispatch.Config{
		Workers:      cfg.DispatchWorkers,
		BatchLimit:   cfg.FCMBatchLimit,
		MaxRetries:   cfg.DispatchRetries,
		BackoffBase:  cfg.DispatchBackoffBase,
		RescanPeriod: cfg.DispatchRescanPeriod,
	}, logger)
	dispatcher.Start(ctx)

	// Start the offline queue workers when Sheets is configured. The API
	// still accepts requests without them; items wait as pending.
	if cfg.GoogleServiceAccountFile != "" && cfg.SpreadsheetID != "" {
		sheetsClient, err := sheets.NewClient(ctx, cfg.GoogleServiceAccountFile, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize Sheets client, queue workers disabled")
		} else {
			applier := apply.NewSheetsApplier(sheetsClient, logger)
			queueWorker := worker.NewQueueWorker(requestRepository, applier, worker.Config{
				Workers:      cfg.QueueWorkers,
				PollInterval: cfg.QueuePollInterval,
				Lease:        cfg.QueueLease,
				MaxAttempts:  cfg.QueueMaxAttempts,
				BackoffBase:  cfg.QueueBackoffBase,
				BackoffCap:   cfg.QueueBackoffCap,
				Jitter:       cfg.QueueJitter,
				ApplyTimeout: cfg.ApplyTimeout,
			}, logger)
			queueWorker.Start(ctx)
		}
	} else {
		logger.Warn().Msg("Sheets not configured, queue workers disabled")
	}

	// Initialize use cases (dependency injection)
	notificationUc := notificationUsecasePkg.NewNotificationUsecase(notificationRepository, dispatcher, logger)
	requestUc := requestUsecasePkg.NewRequestUsecase(requestRepository, cfg.SpreadsheetID, cfg.SheetName, logger)

	// Initialize HTTP handler
	handler := api.NewHandler(registryUc, notificationUc, requestUc, cfg, logger)

	// Start server
	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := handler.Start(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
