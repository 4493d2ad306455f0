package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/queue"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
)

// MaintenanceService implements the batch-consumer side of the task
// queue. Every job here is a best-effort hint: a failed or lost job is
// acceptable because the store is the only source of truth.
type MaintenanceService struct {
	workflow     *WorkflowService
	tickets      repository.TicketRepository
	interactions repository.InteractionRepository
	cache        cache.Cache
	cacheTTL     config.CacheConfig
	cfg          config.QueueConfig
	logger       *zap.Logger
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(workflow *WorkflowService, tickets repository.TicketRepository, interactions repository.InteractionRepository, c cache.Cache, cacheTTL config.CacheConfig, cfg config.QueueConfig, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		workflow:     workflow,
		tickets:      tickets,
		interactions: interactions,
		cache:        c,
		cacheTTL:     cacheTTL,
		cfg:          cfg,
		logger:       logger,
	}
}

// RegisterHandlers binds every known task type onto the consumer.
func (s *MaintenanceService) RegisterHandlers(consumer *queue.Consumer) {
	consumer.Register(queue.TaskRefreshTicketCache, s.refreshTicketCache)
	consumer.Register(queue.TaskCloseInactiveTickets, s.closeInactiveTickets)
	consumer.Register(queue.TaskSendNotifications, s.sendNotifications)
	consumer.Register(queue.TaskArchiveOldInteractions, s.archiveOldInteractions)
}

// refreshTicketCache re-primes the single-ticket cache entry after a
// mutation. If the ticket vanished, the stale key is dropped instead.
func (s *MaintenanceService) refreshTicketCache(ctx context.Context, task queue.Task) error {
	ticketID := payloadInt64(task.Payload, "ticket_id", 0)
	if ticketID == 0 {
		return fmt.Errorf("task %s missing ticket_id", task.ID)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.cache.Delete(ctx, cache.TicketKey(ticketID))
		}
		return err
	}

	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cache.TicketKey(ticketID), raw, s.cacheTTL.EntityTTL())
}

// closeInactiveTickets closes non-closed tickets that have not been
// touched for the configured number of days. Closing goes through the
// workflow layer so every closure leaves an audit interaction.
func (s *MaintenanceService) closeInactiveTickets(ctx context.Context, task queue.Task) error {
	days := payloadInt(task.Payload, "days", s.cfg.InactiveDays)
	threshold := time.Now().AddDate(0, 0, -days)

	stale, err := s.tickets.ListInactive(ctx, threshold, 100)
	if err != nil {
		return err
	}

	var closed int
	for _, ticket := range stale {
		if _, err := s.workflow.Close(ctx, ticket.ID, s.cfg.SystemActorID, s.cfg.InactiveCloseComment); err != nil {
			s.logger.Warn("failed to close inactive ticket",
				zap.Int64("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		closed++
	}
	s.logger.Info("closed inactive tickets",
		zap.Int("closed", closed), zap.Int("candidates", len(stale)), zap.Int("days", days))
	return nil
}

// sendNotifications is a placeholder router target; delivery is handled
// by an external system.
func (s *MaintenanceService) sendNotifications(_ context.Context, task queue.Task) error {
	kind := payloadString(task.Payload, "type", "new_tickets")
	s.logger.Info("processing notifications", zap.String("type", kind))
	return nil
}

// archiveOldInteractions reports how many interactions are past the
// archive window. Actual archival lives outside this service.
func (s *MaintenanceService) archiveOldInteractions(ctx context.Context, task queue.Task) error {
	days := payloadInt(task.Payload, "days", s.cfg.ArchiveAfterDays)
	threshold := time.Now().AddDate(0, 0, -days)

	count, err := s.interactions.CountOlderThan(ctx, threshold)
	if err != nil {
		return err
	}
	s.logger.Info("interactions eligible for archival",
		zap.Int64("count", count), zap.Int("days", days))
	return nil
}

// Payload values arrive as float64 after the JSON round trip.
func payloadInt(payload map[string]any, key string, fallback int) int {
	return int(payloadInt64(payload, key, int64(fallback)))
}

func payloadInt64(payload map[string]any, key string, fallback int64) int64 {
	switch v := payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return fallback
	}
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
