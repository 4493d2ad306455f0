package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	apperrors "github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// QueryService serves reads through the cache-aside layer: consult the
// cache, fall back to the store on miss, repopulate with a TTL. Cache
// failures degrade to store reads; they are logged and never surfaced.
type QueryService struct {
	users        repository.UserRepository
	tickets      repository.TicketRepository
	interactions repository.InteractionRepository
	cache        cache.Cache
	ttl          config.CacheConfig
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// QueryDependencies bundles collaborators for the query service.
type QueryDependencies struct {
	UserRepo        repository.UserRepository
	TicketRepo      repository.TicketRepository
	InteractionRepo repository.InteractionRepository
	Cache           cache.Cache
	CacheTTL        config.CacheConfig
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewQueryService constructs the service.
func NewQueryService(deps QueryDependencies) *QueryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		users:        deps.UserRepo,
		tickets:      deps.TicketRepo,
		interactions: deps.InteractionRepo,
		cache:        deps.Cache,
		ttl:          deps.CacheTTL,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// TicketListFilter narrows ListTickets. Nil fields match everything.
type TicketListFilter struct {
	OwnerID    *int64
	AssigneeID *int64
	State      *domain.TicketState
	Priority   *domain.TicketPriority
	Limit      int
}

// GetUser returns a user by id, read-through cached.
func (s *QueryService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	key := cache.UserKey(id)
	var user domain.User
	if s.cacheGet(ctx, "user", key, &user) {
		return &user, nil
	}

	fetched, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, fetched, s.ttl.EntityTTL())
	return fetched, nil
}

// GetTicket returns a ticket by id, read-through cached.
func (s *QueryService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	key := cache.TicketKey(id)
	var ticket domain.Ticket
	if s.cacheGet(ctx, "ticket", key, &ticket) {
		return &ticket, nil
	}

	fetched, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, fetched, s.ttl.EntityTTL())
	return fetched, nil
}

// ListTickets returns tickets matching the filter, newest first. Results
// are cached per filter signature.
func (s *QueryService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	if filter.State != nil && !filter.State.Valid() {
		return nil, apperrors.NewValidationError("invalid state", map[string]any{"state": *filter.State})
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *filter.Priority})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var state, priority string
	if filter.State != nil {
		state = string(*filter.State)
	}
	if filter.Priority != nil {
		priority = string(*filter.Priority)
	}
	key := cache.TicketListKey(filter.OwnerID, filter.AssigneeID, state, priority, limit)

	var cached []domain.Ticket
	if s.cacheGet(ctx, "ticket_list", key, &cached) {
		return cached, nil
	}

	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		OwnerID:    filter.OwnerID,
		AssigneeID: filter.AssigneeID,
		State:      filter.State,
		Priority:   filter.Priority,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	s.cacheSet(ctx, key, tickets, s.ttl.ListTTL())
	return tickets, nil
}

// ListInteractions returns a ticket's interaction stream, newest first.
// The full stream is cached once; internal-only rows are filtered per
// viewer after the cache read so one entry serves every role.
func (s *QueryService) ListInteractions(ctx context.Context, ticketID int64, viewerRole domain.Role) ([]domain.Interaction, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	key := cache.InteractionsKey(ticketID)
	var entries []domain.Interaction
	if !s.cacheGet(ctx, "interactions", key, &entries) {
		fetched, err := s.interactions.ListByTicket(ctx, ticketID, 100)
		if err != nil {
			return nil, err
		}
		if fetched == nil {
			fetched = []domain.Interaction{}
		}
		entries = fetched
		s.cacheSet(ctx, key, entries, s.ttl.InteractionsTTL())
	}

	if auth.Allowed(viewerRole, auth.ActionInteractionsReadInternal) {
		return entries, nil
	}
	visible := make([]domain.Interaction, 0, len(entries))
	for _, entry := range entries {
		if entry.InternalOnly {
			continue
		}
		visible = append(visible, entry)
	}
	return visible, nil
}

// ListOperators returns active operator/admin users for assignment pickers.
func (s *QueryService) ListOperators(ctx context.Context) ([]domain.User, error) {
	return s.users.ListOperators(ctx)
}

// cacheGet reads and decodes a key, reporting whether it hit. Errors are
// treated as misses.
func (s *QueryService) cacheGet(ctx context.Context, kind, key string, dest any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheLookup(kind, false)
		return false
	}
	if !ok {
		s.metrics.RecordCacheLookup(kind, false)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheLookup(kind, false)
		return false
	}
	s.metrics.RecordCacheLookup(kind, true)
	return true
}

func (s *QueryService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
