package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// InteractionRepository encapsulates the append-only audit stream.
// Interactions are never updated or deleted.
type InteractionRepository interface {
	Create(ctx context.Context, interaction *domain.Interaction) error
	ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.Interaction, error)
	CountOlderThan(ctx context.Context, createdBefore time.Time) (int64, error)
}

type interactionRepository struct {
	pool *pgxpool.Pool
}

// NewInteractionRepository instantiates the repository.
func NewInteractionRepository(pool *pgxpool.Pool) InteractionRepository {
	return &interactionRepository{pool: pool}
}

func (r *interactionRepository) Create(ctx context.Context, interaction *domain.Interaction) error {
	metadata, err := marshalMetadata(interaction.Metadata)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO interactions (ticket_id, actor_id, type, content, metadata, internal_only)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		interaction.TicketID,
		interaction.ActorID,
		interaction.Type,
		interaction.Content,
		metadata,
		interaction.InternalOnly,
	).Scan(&interaction.ID, &interaction.CreatedAt)
}

func (r *interactionRepository) ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, ticket_id, actor_id, type, content, metadata, internal_only, created_at
        FROM interactions WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Interaction
	for rows.Next() {
		var (
			entry    domain.Interaction
			metadata []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Type,
			&entry.Content,
			&metadata,
			&entry.InternalOnly,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *interactionRepository) CountOlderThan(ctx context.Context, createdBefore time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM interactions WHERE created_at < $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, createdBefore).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
