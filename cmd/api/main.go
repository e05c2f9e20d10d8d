package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/projtrack-api/internal/config"
	"github.com/noah-isme/projtrack-api/internal/database"
	"github.com/noah-isme/projtrack-api/internal/handler"
	"github.com/noah-isme/projtrack-api/internal/middleware"
	"github.com/noah-isme/projtrack-api/internal/repository"
	"github.com/noah-isme/projtrack-api/internal/router"
	"github.com/noah-isme/projtrack-api/internal/service"
	"github.com/noah-isme/projtrack-api/internal/utils"
	cloud "github.com/noah-isme/projtrack-api/pkg/cloudinary"
	"github.com/noah-isme/projtrack-api/pkg/events"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "projtrack-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	probes := map[string]handler.HealthProbe{
		"database": databaseProbe(db),
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("redis not configured; overview cache and redis fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}

	var publisher service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewPublisher(events.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure kafka publisher")
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	if !cfg.CloudinaryEnabled() {
		logger.Fatal().Msg("cloudinary credentials missing: set PROJTRACK_CLOUDINARY_CLOUD_NAME, PROJTRACK_CLOUDINARY_API_KEY and PROJTRACK_CLOUDINARY_API_SECRET")
	}
	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create cloudinary storage")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profileRepo := repository.NewProfileRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reviewRepo := repository.NewReviewAssignmentRepository(db)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), publisher, logger)
	intents := service.NewIntentService(repository.NewIntentRepository(db), documentRepo, milestoneRepo, storage, logger)
	overview := service.NewOverviewService(projectRepo, teamRepo, milestoneRepo, documentRepo, redisClient, cfg.OverviewCacheTTL, logger)

	projectService := service.NewProjectService(service.ProjectServiceConfig{
		Projects:  projectRepo,
		Teams:     teamRepo,
		Reviews:   reviewRepo,
		Documents: documentRepo,
		Intents:   intents,
		Storage:   storage,
		Activity:  activity,
		Overview:  overview,
	}, validate, logger)
	documentService := service.NewDocumentService(service.DocumentServiceConfig{
		Documents:   documentRepo,
		Projects:    projectRepo,
		Teams:       teamRepo,
		Intents:     intents,
		Storage:     storage,
		Notifier:    notifications,
		Activity:    activity,
		Overview:    overview,
		MaxUploadMB: cfg.UploadMaxMB,
	}, validate, logger)
	milestoneService := service.NewMilestoneService(service.MilestoneServiceConfig{
		Milestones:  milestoneRepo,
		Documents:   documentRepo,
		Projects:    projectRepo,
		Teams:       teamRepo,
		Intents:     intents,
		Storage:     storage,
		Notifier:    notifications,
		Activity:    activity,
		Overview:    overview,
		MaxUploadMB: cfg.UploadMaxMB,
	}, validate, logger)
	taskService := service.NewTaskService(taskRepo, projectRepo, teamRepo, notifications, activity, validate, logger)
	feedbackService := service.NewFeedbackService(repository.NewFeedbackRepository(db), taskRepo, projectRepo, teamRepo, notifications, activity, validate, logger)
	teamService := service.NewTeamService(teamRepo, profileRepo, projectRepo, notifications, activity, validate, logger)
	reviewService := service.NewReviewAssignmentService(reviewRepo, profileRepo, projectRepo, notifications, activity, validate, logger)
	profileService := service.NewProfileService(profileRepo, activity, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
			return utils.SendError(c, status, err.Error())
		},
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ProjectHandler:      handler.NewProjectHandler(projectService, overview, logger),
		DocumentHandler:     handler.NewDocumentHandler(documentService, logger),
		MilestoneHandler:    handler.NewMilestoneHandler(milestoneService, logger),
		TaskHandler:         handler.NewTaskHandler(taskService, feedbackService, logger),
		TeamHandler:         handler.NewTeamHandler(teamService, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, cfg.StreamKeepAlive),
		ProfileHandler:      handler.NewProfileHandler(profileService, reviewService, logger),
		AdminHandler:        handler.NewAdminHandler(activity, intents, reviewService, cfg.SweepStaleAfter, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		RateLimiter:         middleware.RateLimit("api", cfg.RateLimitMax, cfg.RateLimitWindow),
		HealthProbes:        probes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications.Start(ctx)
	go runReconciler(ctx, intents, cfg.SweepInterval, cfg.SweepStaleAfter, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdown(app, logger)
}

// runReconciler repairs interrupted document and milestone workflows on a fixed interval.
func runReconciler(ctx context.Context, intents service.IntentService, interval, staleAfter time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := intents.Reconcile(ctx, staleAfter)
			if err != nil {
				logger.Error().Err(err).Msg("intent reconciliation failed")
				continue
			}
			if summary.Scanned > 0 {
				logger.Info().Interface("summary", summary).Msg("intent reconciliation finished")
			}
		}
	}
}

func databaseProbe(db *gorm.DB) handler.HealthProbe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func shutdown(app *fiber.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
