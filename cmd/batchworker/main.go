package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
	"github.com/helpdesk-kit/helpdesk/internal/queue"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/internal/service"
)

// batchworker drains one batch of pending maintenance tasks and exits.
// It is meant to run from cron as an alternative to POST /batch.
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	interactionRepo := repository.NewInteractionRepository(pool)
	store := repository.NewAtomicWriter(pool)

	ticketCache := cache.NewRedisCache(rdb.Client)
	taskQueue := queue.NewRedisQueue(rdb.Client)

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		UserRepo:        userRepo,
		TicketRepo:      ticketRepo,
		InteractionRepo: interactionRepo,
		Store:           store,
		Cache:           ticketCache,
		Queue:           taskQueue,
		Logger:          logger,
	})
	maintenance := service.NewMaintenanceService(workflowService, ticketRepo, interactionRepo, ticketCache, cfg.Cache, cfg.Queue, logger)

	consumer := queue.NewConsumer(taskQueue, cfg.Queue.BatchSize, logger)
	maintenance.RegisterHandlers(consumer)

	result, err := consumer.ProcessBatch(ctx)
	if err != nil {
		logger.Fatal("batch processing failed", zap.Error(err))
	}
	logger.Info("batch processing completed",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
		zap.Int64("remaining", result.Remaining),
	)
}
