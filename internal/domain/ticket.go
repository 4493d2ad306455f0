package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateOpen       TicketState = "open"
	TicketStateInProgress TicketState = "in_progress"
	TicketStateResolved   TicketState = "resolved"
	TicketStateClosed     TicketState = "closed"
)

// Valid reports whether the state is one of the defined values.
func (s TicketState) Valid() bool {
	switch s {
	case TicketStateOpen, TicketStateInProgress, TicketStateResolved, TicketStateClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether the priority is one of the defined values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. ClosedAt is non-nil iff
// State is closed; the workflow layer stamps it inside the same atomic
// write that moves the state.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	OwnerID     int64
	State       TicketState
	Priority    TicketPriority
	Category    *string
	AssigneeID  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}
