package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// TicketFilter captures list-query predicates. All predicates are
// equality matches; Limit caps the result set.
type TicketFilter struct {
	OwnerID    *int64
	AssigneeID *int64
	State      *domain.TicketState
	Priority   *domain.TicketPriority
	Limit      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// CreateWithInteraction inserts the ticket and its initial audit
	// interaction in one transaction so the audit stream is complete
	// from the very first row.
	CreateWithInteraction(ctx context.Context, ticket *domain.Ticket, interaction *domain.Interaction) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListInactive(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, owner_id, state, priority, category,
               assignee_id, created_at, updated_at, closed_at`

func (r *ticketRepository) CreateWithInteraction(ctx context.Context, ticket *domain.Ticket, interaction *domain.Interaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertTicket = `
        INSERT INTO tickets (title, description, owner_id, state, priority, category, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertTicket,
		ticket.Title,
		ticket.Description,
		ticket.OwnerID,
		ticket.State,
		ticket.Priority,
		ticket.Category,
		ticket.AssigneeID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	interaction.TicketID = ticket.ID
	metadata, err := marshalMetadata(interaction.Metadata)
	if err != nil {
		return err
	}
	const insertInteraction = `
        INSERT INTO interactions (ticket_id, actor_id, type, content, metadata, internal_only)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertInteraction,
		interaction.TicketID,
		interaction.ActorID,
		interaction.Type,
		interaction.Content,
		metadata,
		interaction.InternalOnly,
	).Scan(&interaction.ID, &interaction.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf("state=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListInactive(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE state <> 'closed' AND updated_at < $1
        ORDER BY updated_at ASC LIMIT %d`, ticketColumns, limit)

	rows, err := r.pool.Query(ctx, query, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.OwnerID,
		&ticket.State,
		&ticket.Priority,
		&ticket.Category,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}
