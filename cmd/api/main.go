package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/ratelimit"
	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/worker"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterSweepTick = time.Minute
	limiterIdleTTL   = 10 * time.Minute
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	repos, err := buildStores(ctx, pg, cfg.App, logger)
	if err != nil {
		logger.Fatal("failed to prepare stores", zap.Error(err))
	}

	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	var relayDone <-chan struct{}
	if redis.Enabled() {
		publisher = realtime.NewRedisPublisher(redis.Client, cfg.Realtime.Channel)
		relayDone = worker.StartRealtimeRelay(ctx, redis.Client, cfg.Realtime.Channel, hub, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, metrics, logger, cfg.Notification))

	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: repos.tickets,
		StaffRepo:  repos.staff,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		Assignment:  assignment,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		MaxAttempts: cfg.Lifecycle.MaxAttempts,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	resolver := auth.NewPrincipalResolver(tokens, repos.residents, repos.staff)

	var rateLimit fiber.Handler
	if cfg.RateLimit.Enabled {
		rateLimit = httptransport.RateLimitMiddleware(newLimiter(ctx, cfg.RateLimit, redis), logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		Diagnostics: !cfg.App.IsProduction(),
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Staff:          handlers.NewStaffHandler(service.NewStaffService(assignment)),
		AuthMiddleware: auth.NewAuthMiddleware(resolver),
		RateLimit:      rateLimit,
		Metrics:        metrics,
	})

	gateway := realtime.NewServer(cfg.Realtime.Addr, realtime.NewRouter(
		realtime.NewHandler(hub, resolver, ticketService, realtime.Options{SendBuffer: cfg.Realtime.SendBuffer}, logger),
	), logger)

	errCh := make(chan error, 2)
	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			errCh <- fmt.Errorf("http listener: %w", err)
		}
	}()
	go func() {
		if err := gateway.Start(); err != nil {
			errCh <- fmt.Errorf("realtime listener: %w", err)
		}
	}()
	logger.Info("complaint service started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("realtime_addr", cfg.Realtime.Addr),
		zap.Bool("postgres", pg.Enabled()),
		zap.Bool("redis", redis.Enabled()))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("listener failed, shutting down", zap.Error(err))
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	if relayDone != nil {
		<-relayDone
	}
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, redis *persistence.Redis) ratelimit.Limiter {
	if redis.Enabled() {
		return ratelimit.NewRedisLimiter(redis.Client, "ratelimit", cfg.Requests, cfg.Window)
	}
	local := ratelimit.NewLocalLimiter(cfg.Requests, cfg.Window)
	go local.Sweep(ctx, limiterSweepTick, limiterIdleTTL)
	return local
}
