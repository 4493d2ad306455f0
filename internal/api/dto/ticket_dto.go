package dto

import (
	"time"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    *string               `json:"category"`
	AssigneeID  *int64                `json:"assignee_id"`
}

// ChangeStateRequest payload.
type ChangeStateRequest struct {
	State   domain.TicketState `json:"state"`
	Comment string             `json:"comment"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// CloseRequest payload.
type CloseRequest struct {
	Comment string `json:"comment"`
}

// CreateInteractionRequest payload.
type CreateInteractionRequest struct {
	Content  string `json:"content"`
	Internal bool   `json:"internal"`
}

// TicketResponse mirrors a persisted ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	OwnerID     int64                 `json:"owner_id"`
	State       domain.TicketState    `json:"state"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    *string               `json:"category"`
	AssigneeID  *int64                `json:"assignee_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ClosedAt    *time.Time            `json:"closed_at"`
}

// MutationResponse reports a successful workflow mutation.
type MutationResponse struct {
	TicketID      int64              `json:"ticket_id"`
	State         domain.TicketState `json:"state"`
	InteractionID int64              `json:"interaction_id"`
}

// InteractionResponse mirrors one audit entry.
type InteractionResponse struct {
	ID           int64                  `json:"id"`
	TicketID     int64                  `json:"ticket_id"`
	ActorID      int64                  `json:"actor_id"`
	Type         domain.InteractionType `json:"type"`
	Content      *string                `json:"content"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
	InternalOnly bool                   `json:"internal_only"`
	CreatedAt    time.Time              `json:"created_at"`
}

// TicketFromDomain converts a domain ticket.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		OwnerID:     t.OwnerID,
		State:       t.State,
		Priority:    t.Priority,
		Category:    t.Category,
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// InteractionFromDomain converts a domain interaction.
func InteractionFromDomain(i *domain.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:           i.ID,
		TicketID:     i.TicketID,
		ActorID:      i.ActorID,
		Type:         i.Type,
		Content:      i.Content,
		Metadata:     i.Metadata,
		InternalOnly: i.InternalOnly,
		CreatedAt:    i.CreatedAt,
	}
}
