package domain

import "time"

// InteractionType captures what kind of entry was appended to a ticket's
// audit stream.
type InteractionType string

const (
	InteractionComment     InteractionType = "comment"
	InteractionStateChange InteractionType = "state_change"
	InteractionAssignment  InteractionType = "assignment"
	InteractionClosure     InteractionType = "closure"
)

// Valid reports whether the type is one of the defined values.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionComment, InteractionStateChange, InteractionAssignment, InteractionClosure:
		return true
	}
	return false
}

// Interaction is an immutable audit/comment entry scoped to one ticket.
// Every mutation performed by the workflow layer writes exactly one
// interaction in the same atomic batch, so a ticket's full history is
// reconstructable from its interaction stream. InternalOnly rows are
// visible to operator/admin roles only.
type Interaction struct {
	ID           int64
	TicketID     int64
	ActorID      int64
	Type         InteractionType
	Content      *string
	Metadata     map[string]any
	InternalOnly bool
	CreatedAt    time.Time
}
