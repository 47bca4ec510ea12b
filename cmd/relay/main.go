package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-relay/internal/api/http"
	"github.com/spec-kit/support-relay/internal/api/http/handlers"
	"github.com/spec-kit/support-relay/internal/config"
	"github.com/spec-kit/support-relay/internal/events"
	"github.com/spec-kit/support-relay/internal/locker"
	"github.com/spec-kit/support-relay/internal/observability"
	"github.com/spec-kit/support-relay/internal/persistence"
	"github.com/spec-kit/support-relay/internal/repository"
	"github.com/spec-kit/support-relay/internal/service"
	"github.com/spec-kit/support-relay/internal/telegram"
	"github.com/spec-kit/support-relay/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(cfg.Telemetry, cfg.App, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, observability.Tracer(), logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var userLocker locker.Locker = locker.NewMemoryLocker(cfg.Relay.LockTTL())
	var redisPinger handlers.Pinger
	if redis != nil {
		userLocker = locker.NewRedisLocker(redis.Client, "relay:lock:", cfg.Relay.LockTTL(), cfg.Relay.LockTTL())
		redisPinger = redis
	}

	bot := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.RequestTimeout())
	me, err := bot.GetMe(ctx)
	if err != nil {
		logger.Fatal("failed to reach bot api", zap.Error(err))
	}
	logger.Info("bot identified", zap.String("username", me.Username), zap.Int64("hub_chat_id", cfg.Telegram.HubChatID))

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	messageRepo := repository.NewMirroredMessageRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, messageRepo, logger).RegisterHandlers()

	resolver := service.NewTicketResolver(service.ResolverDependencies{
		TicketRepo:    ticketRepo,
		HistoryRepo:   historyRepo,
		Transport:     bot,
		Locker:        userLocker,
		Dispatcher:    dispatcher,
		Logger:        logger,
		HubChatID:     cfg.Telegram.HubChatID,
		DefaultSource: cfg.Relay.DefaultSource,
	})
	lifecycle := service.NewLifecycleController(service.LifecycleDependencies{
		TicketRepo:       ticketRepo,
		HistoryRepo:      historyRepo,
		Transport:        bot,
		Dispatcher:       dispatcher,
		Logger:           logger,
		HubChatID:        cfg.Telegram.HubChatID,
		CloseAckText:     cfg.Relay.CloseAckText,
		ClosedNoticeText: cfg.Relay.ClosedNoticeText,
	})
	router := service.NewRouter(service.RouterConfig{
		HubChatID:     cfg.Telegram.HubChatID,
		AutoReplyText: cfg.Relay.AutoReplyText,
		BotUsername:   me.Username,
	}, service.RouterDependencies{
		Resolver:   resolver,
		Lifecycle:  lifecycle,
		TicketRepo: ticketRepo,
		Transport:  bot,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	relay := service.NewRelay(service.RelayDependencies{
		Router:   router,
		Deduper:  redis,
		DedupTTL: cfg.Relay.DedupTTL(),
		Metrics:  metrics,
		Tracer:   observability.Tracer(),
		Logger:   logger,
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger),
		Metrics: handlers.NewMetricsHandler(metrics),
	}
	pollerDone := make(chan struct{})
	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		close(pollerDone)
		routes.Webhook = handlers.NewWebhookHandler(relay, cfg.Telegram.WebhookSecret, logger)
		if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal("failed to register webhook", zap.Error(err))
		}
		logger.Info("webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
	default:
		poller := worker.NewUpdatePoller(bot, relay, time.Duration(cfg.Telegram.PollTimeoutSeconds)*time.Second, logger)
		go func() {
			defer close(pollerDone)
			if err := poller.Run(ctx); err != nil {
				logger.Error("update poller failed", zap.Error(err))
			}
		}()
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	select {
	case <-pollerDone:
	case <-time.After(5 * time.Second):
		logger.Warn("update poller still busy at shutdown")
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("trace flush", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
