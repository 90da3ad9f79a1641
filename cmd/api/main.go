package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-intake/internal/api/http"
	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/bootstrap"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Migrate: cfg.Postgres.RunMigrations})
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}
	defer container.Close()

	pool := worker.New(worker.Dependencies{
		Intake:      container.Intake,
		Signup:      container.Signup,
		Logger:      logger,
		Concurrency: cfg.Events.WorkerConcurrency,
	})

	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Metrics, readinessChecks(container))

	var publisher events.Publisher
	switch cfg.Events.Backend {
	case config.EventsBackendRedis:
		queue := events.NewRedisQueue(container.Redis.Client, cfg.Events.QueueKey)
		if err := pool.Consume(ctx, queue); err != nil {
			logger.Fatal("failed to start queue consumer", zap.Error(err))
		}
		publisher = queue
		health.WithQueue(queue)
	default:
		dispatcher := events.NewInMemoryDispatcher()
		pool.Register(dispatcher)
		pool.Start(ctx)
		publisher = dispatcher
	}

	notifications := service.NewNotificationService(container.Notifier, container.Accounts, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    container.Tickets,
		RunRepo:       container.Runs,
		Publisher:     publisher,
		Notifications: notifications,
		Logger:        logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AccountRepo: container.Accounts,
		Publisher:   publisher,
		Logger:      logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), container.Accounts)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, container.Metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         health,
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	pool.Stop()
}

func readinessChecks(c *bootstrap.Container) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if c.Postgres.Configured() {
		checks["postgres"] = c.Postgres
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	return checks
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
