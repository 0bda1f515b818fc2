package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/curator-desk/internal/api/http"
	"github.com/spec-kit/curator-desk/internal/api/http/handlers"
	"github.com/spec-kit/curator-desk/internal/auth"
	"github.com/spec-kit/curator-desk/internal/config"
	"github.com/spec-kit/curator-desk/internal/events"
	"github.com/spec-kit/curator-desk/internal/gateway/telegram"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/persistence"
	"github.com/spec-kit/curator-desk/internal/service"
	"github.com/spec-kit/curator-desk/internal/worker"
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

	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	bot := telegram.NewClient(telegram.Config{
		BaseURL: cfg.Telegram.APIBaseURL,
		Token:   cfg.Telegram.BotToken,
		ChatID:  cfg.Telegram.ForumChatID,
		Timeout: cfg.Telegram.RequestTimeout(),
	}, logger)

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		CuratorRepo: store.Curators,
		Cache:       redis.Client,
		CacheTTL:    cfg.Directory.CacheTTL(),
		Logger:      logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Directory:  directory,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	var retryQueue *worker.CardRetryQueue
	notificationDeps := service.NotificationDependencies{
		Dispatcher: dispatcher,
		Gateway:    bot,
		Store:      store,
		States:     assignments,
		Directory:  directory,
		Metrics:    metrics,
		Logger:     logger,
	}
	if redis.Client != nil {
		retryQueue = worker.NewCardRetryQueue(redis.Client, worker.QueueOptions{
			MaxAttempts: cfg.Worker.MaxAttempts,
			Backoff:     cfg.Worker.RetryInterval(),
		})
		notificationDeps.Retries = retryQueue
	}
	notifications := service.NewNotificationService(notificationDeps)
	workerDone := worker.StartNotificationWorker(ctx, notifications, retryQueue, cfg.Worker.RetryInterval(), logger)

	router := service.NewRouterService(service.RouterDependencies{
		Assignments: assignments,
		Gateway:     bot,
		Store:       store,
		Directory:   directory,
		ChatID:      cfg.Telegram.ForumChatID,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, redis),
		Webhook:        handlers.NewWebhookHandler(router, assignments, bot, cfg.Telegram.BotUserID, logger),
		Admin:          handlers.NewAdminHandler(assignments, directory, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		WebhookGuard:   auth.NewWebhookGuard(cfg.Auth.WebhookSecretHash),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	<-workerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
