package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk-kit/helpdesk/internal/api/http"
	"github.com/helpdesk-kit/helpdesk/internal/api/http/handlers"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
	"github.com/helpdesk-kit/helpdesk/internal/queue"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/internal/service"
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

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	interactionRepo := repository.NewInteractionRepository(pool)
	store := repository.NewAtomicWriter(pool)

	ticketCache := cache.NewRedisCache(rdb.Client)
	taskQueue := queue.NewRedisQueue(rdb.Client)
	metrics := observability.NewMetrics()

	queryService := service.NewQueryService(service.QueryDependencies{
		UserRepo:        userRepo,
		TicketRepo:      ticketRepo,
		InteractionRepo: interactionRepo,
		Cache:           ticketCache,
		CacheTTL:        cfg.Cache,
		Metrics:         metrics,
		Logger:          logger,
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		UserRepo:        userRepo,
		TicketRepo:      ticketRepo,
		InteractionRepo: interactionRepo,
		Store:           store,
		Cache:           ticketCache,
		Queue:           taskQueue,
		Metrics:         metrics,
		Logger:          logger,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	maintenance := service.NewMaintenanceService(workflowService, ticketRepo, interactionRepo, ticketCache, cfg.Cache, cfg.Queue, logger)

	consumer := queue.NewConsumer(taskQueue, cfg.Queue.BatchSize, logger)
	maintenance.RegisterHandlers(consumer)

	authMiddleware := auth.NewMiddleware(authService.TokenManager(), queryService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	app.Use(recover.New())
	app.Use(observability.RequestLogger(logger, metrics))

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Users:          handlers.NewUsersHandler(authService, queryService),
		Tickets:        handlers.NewTicketsHandler(workflowService, queryService),
		Batch:          handlers.NewBatchHandler(consumer, taskQueue),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
	})

	go pollGauges(ctx, taskQueue, ticketCache, metrics)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// pollGauges periodically samples queue depth and cache size for /metrics.
func pollGauges(ctx context.Context, q queue.Queue, c cache.Cache, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth, err := q.Length(ctx); err == nil {
				metrics.SetQueueDepth(depth)
			}
			if size, err := c.Size(ctx); err == nil {
				metrics.SetCacheSize(size)
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
