package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/protocol-service/internal/api/http"
	"github.com/spec-kit/protocol-service/internal/api/http/handlers"
	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/config"
	"github.com/spec-kit/protocol-service/internal/events"
	"github.com/spec-kit/protocol-service/internal/observability"
	"github.com/spec-kit/protocol-service/internal/offline"
	"github.com/spec-kit/protocol-service/internal/persistence"
	"github.com/spec-kit/protocol-service/internal/repository"
	"github.com/spec-kit/protocol-service/internal/service"
	"github.com/spec-kit/protocol-service/internal/storage"
	"github.com/spec-kit/protocol-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	protocolRepo := repository.NewProtocolRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)

	var queue offline.Queue
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, offline queue falls back to memory", zap.Error(err))
		queue = offline.NewMemoryQueue()
	} else {
		queue = offline.NewRedisQueue(redis.Client, cfg.Offline.KeyPrefix, logger)
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	protocolService := service.NewProtocolService(service.ProtocolDependencies{
		ProtocolRepo: protocolRepo,
		Queue:        queue,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	authService := service.NewAuthService(cfg.Auth, accountRepo)
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminLogin, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Warn("bootstrap admin not created", zap.Error(err))
	}
	exportService := service.NewExportService(protocolRepo)
	notificationService := service.NewNotificationService(dispatcher, protocolRepo, logger, metrics, cfg.Notification)
	slaClock := service.NewSLAClock(cfg.SLA)
	photoStore := storage.NewDiskPhotoStore(cfg.Photos.BaseDir, cfg.Photos.PublicBaseURL)

	worker.StartNotificationWorker(notificationService)
	syncWorker := worker.NewSyncWorker(queue, protocolService, logger, cfg.Offline)
	go syncWorker.Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Protocols:      handlers.NewProtocolsHandler(protocolService, slaClock),
		Sync:           handlers.NewSyncHandler(protocolService),
		Export:         handlers.NewExportHandler(exportService),
		Evidence:       handlers.NewEvidenceHandler(photoStore),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
