package domain

import "time"

// Role gates which workflow actions an actor may invoke.
type Role string

const (
	RoleClient   Role = "client"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the defined values.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for everyone who touches tickets: clients who
// open them and operators/admins who work them. Users are never hard
// deleted; Active=false soft-deactivates the account.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}
