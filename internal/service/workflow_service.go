package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/queue"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	apperrors "github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// WorkflowService performs ticket mutations and their audit trail as one
// indivisible unit, then keeps caches coherent afterward. Every mutation
// follows the same shape: permission gate, current-state read, atomic
// (ticket update + interaction insert) batch, best-effort cache
// invalidation and queue enqueue. The side effects may fail independently
// of the write; failures are logged, never surfaced.
type WorkflowService struct {
	users        repository.UserRepository
	tickets      repository.TicketRepository
	interactions repository.InteractionRepository
	store        repository.AtomicWriter
	cache        cache.Cache
	queue        queue.Queue
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	UserRepo        repository.UserRepository
	TicketRepo      repository.TicketRepository
	InteractionRepo repository.InteractionRepository
	Store           repository.AtomicWriter
	Cache           cache.Cache
	Queue           queue.Queue
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		users:        deps.UserRepo,
		tickets:      deps.TicketRepo,
		interactions: deps.InteractionRepo,
		store:        deps.Store,
		cache:        deps.Cache,
		queue:        deps.Queue,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// TicketCreateInput describes the ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    *string
	AssigneeID  *int64
}

// MutationResult reports a successful state-changing operation: the
// ticket's new state and the audit interaction written alongside it.
type MutationResult struct {
	TicketID      int64
	State         domain.TicketState
	InteractionID int64
}

// Create inserts a new ticket in the open state together with its initial
// "ticket created" comment. Any authenticated role may create tickets.
func (s *WorkflowService) Create(ctx context.Context, creatorID int64, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	if _, err := s.loadUser(ctx, creatorID, "creator"); err != nil {
		return nil, err
	}
	if input.AssigneeID != nil {
		if _, err := s.loadUser(ctx, *input.AssigneeID, "assignee"); err != nil {
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		OwnerID:     creatorID,
		State:       domain.TicketStateOpen,
		Priority:    priority,
		Category:    input.Category,
		AssigneeID:  input.AssigneeID,
	}
	content := "ticket created"
	interaction := &domain.Interaction{
		ActorID: creatorID,
		Type:    domain.InteractionComment,
		Content: &content,
	}

	if err := s.tickets.CreateWithInteraction(ctx, ticket, interaction); err != nil {
		s.metrics.RecordWorkflowOp("create", "error")
		return nil, apperrors.NewStoreError(err)
	}
	s.metrics.RecordWorkflowOp("create", "ok")

	// A fresh ticket only affects list projections.
	s.invalidateListCaches(ctx)
	s.enqueueRefresh(ctx, ticket.ID)
	return ticket, nil
}

// ChangeState moves a ticket to newState and records a state_change
// interaction carrying the previous/new state pair, atomically. The
// update is guarded by a compare-and-swap on the state read here, so a
// concurrent transition surfaces as a conflict instead of silently
// overwriting.
func (s *WorkflowService) ChangeState(ctx context.Context, ticketID int64, newState domain.TicketState, actorID int64, comment string) (*MutationResult, error) {
	if !newState.Valid() {
		return nil, apperrors.NewValidationError("invalid state", map[string]any{"state": newState})
	}
	if err := s.authorize(ctx, actorID, auth.ActionTicketsUpdate); err != nil {
		return nil, err
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, "change_state", ticket, newState, actorID, comment, domain.InteractionStateChange)
}

// Close is ChangeState specialized to the closed state; the audit entry
// is written as a closure interaction. Closing an already-closed ticket
// is permitted and re-stamps closed_at.
func (s *WorkflowService) Close(ctx context.Context, ticketID int64, actorID int64, comment string) (*MutationResult, error) {
	if err := s.authorize(ctx, actorID, auth.ActionTicketsUpdate); err != nil {
		return nil, err
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, "close", ticket, domain.TicketStateClosed, actorID, comment, domain.InteractionClosure)
}

// Assign sets the ticket's assignee and records an assignment interaction,
// atomically.
func (s *WorkflowService) Assign(ctx context.Context, ticketID, assigneeID, actorID int64) (*MutationResult, error) {
	if err := s.authorize(ctx, actorID, auth.ActionTicketsAssign); err != nil {
		return nil, err
	}
	assignee, err := s.loadUser(ctx, assigneeID, "assignee")
	if err != nil {
		return nil, err
	}
	if !assignee.Active {
		return nil, apperrors.NewValidationError("assignee is deactivated", map[string]any{"assignee": assigneeID})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"assignee": assigneeID}
	if ticket.AssigneeID != nil {
		metadata["previous_assignee"] = *ticket.AssigneeID
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	stmts := []repository.Statement{
		{
			SQL:         `UPDATE tickets SET assignee_id=$1, updated_at=NOW() WHERE id=$2`,
			Args:        []any{assigneeID, ticket.ID},
			RequireRows: true,
		},
		{
			SQL: `INSERT INTO interactions (ticket_id, actor_id, type, content, metadata, internal_only)
                  VALUES ($1,$2,$3,NULL,$4,FALSE) RETURNING id`,
			Args: []any{ticket.ID, actorID, domain.InteractionAssignment, metadataJSON},
		},
	}

	results, err := s.store.ExecAtomic(ctx, stmts)
	if err != nil {
		s.metrics.RecordWorkflowOp("assign", "error")
		return nil, s.mapStoreError(err)
	}
	s.metrics.RecordWorkflowOp("assign", "ok")

	s.invalidateTicketCaches(ctx, ticket.ID)
	s.enqueueRefresh(ctx, ticket.ID)
	return &MutationResult{
		TicketID:      ticket.ID,
		State:         ticket.State,
		InteractionID: results[1].InsertedID,
	}, nil
}

// AddComment appends a comment interaction to a ticket. Internal notes
// require the internal-creation permission and stay hidden from clients.
func (s *WorkflowService) AddComment(ctx context.Context, ticketID, actorID int64, content string, internal bool) (*domain.Interaction, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	action := auth.ActionInteractionsCreate
	if internal {
		action = auth.ActionInteractionsCreateInternal
	}
	if err := s.authorize(ctx, actorID, action); err != nil {
		return nil, err
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	interaction := &domain.Interaction{
		TicketID:     ticket.ID,
		ActorID:      actorID,
		Type:         domain.InteractionComment,
		Content:      &content,
		InternalOnly: internal,
	}
	if err := s.interactions.Create(ctx, interaction); err != nil {
		s.metrics.RecordWorkflowOp("add_comment", "error")
		return nil, apperrors.NewStoreError(err)
	}
	s.metrics.RecordWorkflowOp("add_comment", "ok")

	if err := s.cache.Delete(ctx, cache.InteractionsKey(ticket.ID)); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("key", cache.InteractionsKey(ticket.ID)), zap.Error(err))
	}
	return interaction, nil
}

// transition runs the shared atomic state-move + audit-row batch.
func (s *WorkflowService) transition(ctx context.Context, op string, ticket *domain.Ticket, newState domain.TicketState, actorID int64, comment string, interactionType domain.InteractionType) (*MutationResult, error) {
	metadataJSON, err := json.Marshal(map[string]any{
		"previous_state": ticket.State,
		"new_state":      newState,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	updateSQL := `UPDATE tickets SET state=$1, updated_at=NOW() WHERE id=$2 AND state=$3`
	if newState == domain.TicketStateClosed {
		updateSQL = `UPDATE tickets SET state=$1, updated_at=NOW(), closed_at=NOW() WHERE id=$2 AND state=$3`
	}

	stmts := []repository.Statement{
		{
			SQL:         updateSQL,
			Args:        []any{newState, ticket.ID, ticket.State},
			RequireRows: true,
		},
		{
			SQL: `INSERT INTO interactions (ticket_id, actor_id, type, content, metadata, internal_only)
                  VALUES ($1,$2,$3,$4,$5,FALSE) RETURNING id`,
			Args: []any{ticket.ID, actorID, interactionType, nullIfEmpty(comment), metadataJSON},
		},
	}

	results, err := s.store.ExecAtomic(ctx, stmts)
	if err != nil {
		s.metrics.RecordWorkflowOp(op, "error")
		return nil, s.mapStoreError(err)
	}
	s.metrics.RecordWorkflowOp(op, "ok")

	s.invalidateTicketCaches(ctx, ticket.ID)
	s.enqueueRefresh(ctx, ticket.ID)
	return &MutationResult{
		TicketID:      ticket.ID,
		State:         newState,
		InteractionID: results[1].InsertedID,
	}, nil
}

// authorize loads the actor and checks the permission table. It runs
// before any write so failed checks leave the store untouched.
func (s *WorkflowService) authorize(ctx context.Context, actorID int64, action auth.Action) error {
	actor, err := s.loadUser(ctx, actorID, "actor")
	if err != nil {
		return err
	}
	if !actor.Active {
		return apperrors.NewForbidden("account deactivated")
	}
	if !auth.Allowed(actor.Role, action) {
		return apperrors.NewForbidden("action not permitted for role")
	}
	return nil
}

func (s *WorkflowService) loadUser(ctx context.Context, id int64, resource string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(resource, map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return user, nil
}

func (s *WorkflowService) getTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

func (s *WorkflowService) mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return apperrors.NewConflict("ticket was modified concurrently", nil)
	}
	return apperrors.NewStoreError(err)
}

// invalidateTicketCaches drops the single-ticket entry, every cached list
// that could contain the ticket, and the ticket's interaction list. All
// best-effort: a failed invalidation only extends staleness up to the TTL.
func (s *WorkflowService) invalidateTicketCaches(ctx context.Context, ticketID int64) {
	for _, key := range []string{cache.TicketKey(ticketID), cache.InteractionsKey(ticketID)} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.invalidateListCaches(ctx)
}

func (s *WorkflowService) invalidateListCaches(ctx context.Context) {
	if _, err := s.cache.DeleteByPrefix(ctx, cache.TicketListPrefix); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("prefix", cache.TicketListPrefix), zap.Error(err))
	}
}

func (s *WorkflowService) enqueueRefresh(ctx context.Context, ticketID int64) {
	task := queue.NewTask(queue.TaskRefreshTicketCache, map[string]any{"ticket_id": ticketID})
	if err := s.queue.Push(ctx, task); err != nil {
		s.logger.Warn("enqueue failed",
			zap.String("task_type", task.Type), zap.Int64("ticket_id", ticketID), zap.Error(err))
	}
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
