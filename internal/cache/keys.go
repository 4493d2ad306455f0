package cache

import (
	"fmt"
	"strconv"
)

// Key layout. Single entities live under `<entity>:<id>`; list queries
// under `tickets:list:<signature>` so a single prefix delete invalidates
// every cached list that could contain a mutated ticket.
const (
	ticketKeyPrefix    = "ticket:"
	userKeyPrefix      = "user:"
	TicketListPrefix   = "tickets:list:"
	interactionsPrefix = "interactions:"
)

// TicketKey returns the cache key for a single ticket.
func TicketKey(id int64) string {
	return ticketKeyPrefix + strconv.FormatInt(id, 10)
}

// UserKey returns the cache key for a single user.
func UserKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

// InteractionsKey returns the cache key for a ticket's interaction list.
func InteractionsKey(ticketID int64) string {
	return interactionsPrefix + strconv.FormatInt(ticketID, 10)
}

// TicketListKey derives a deterministic key from list-query predicates.
// Absent predicates are encoded as "-" so distinct filters never collide.
func TicketListKey(owner, assignee *int64, state, priority string, limit int) string {
	return fmt.Sprintf("%s%s:%s:%s:%s:%d",
		TicketListPrefix,
		formatID(owner),
		formatID(assignee),
		orDash(state),
		orDash(priority),
		limit,
	)
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
