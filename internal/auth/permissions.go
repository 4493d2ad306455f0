package auth

import "github.com/helpdesk-kit/helpdesk/internal/domain"

// Action tags the operations gated by the permission table.
type Action string

const (
	ActionTicketsRead                Action = "tickets.read"
	ActionTicketsCreate              Action = "tickets.create"
	ActionTicketsUpdate              Action = "tickets.update"
	ActionTicketsAssign              Action = "tickets.assign"
	ActionInteractionsRead           Action = "interactions.read"
	ActionInteractionsCreate         Action = "interactions.create"
	ActionInteractionsCreateInternal Action = "interactions.create_internal"
	ActionInteractionsReadInternal   Action = "interactions.read_internal"
	ActionUsersRead                  Action = "users.read"

	// actionWildcard grants every action; only the admin role carries it.
	actionWildcard Action = "*"
)

var rolePermissions = map[domain.Role]map[Action]struct{}{
	domain.RoleClient: actionSet(
		ActionTicketsRead,
		ActionTicketsCreate,
		ActionInteractionsRead,
		ActionInteractionsCreate,
	),
	domain.RoleOperator: actionSet(
		ActionTicketsRead,
		ActionTicketsCreate,
		ActionTicketsUpdate,
		ActionTicketsAssign,
		ActionInteractionsRead,
		ActionInteractionsCreate,
		ActionInteractionsCreateInternal,
		ActionInteractionsReadInternal,
		ActionUsersRead,
	),
	domain.RoleAdmin: actionSet(
		actionWildcard,
	),
}

// Allowed reports whether the role may perform the action. Unknown roles
// and unknown actions fail closed.
func Allowed(role domain.Role, action Action) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	if _, ok := perms[actionWildcard]; ok {
		return true
	}
	_, ok = perms[action]
	return ok
}

func actionSet(actions ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}
