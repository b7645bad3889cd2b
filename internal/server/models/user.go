// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the authorization level assigned to a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// roleRanks orders roles for permission checks: guest < user < admin.
var roleRanks = map[Role]int{
	RoleGuest: 0,
	RoleUser:  1,
	RoleAdmin: 2,
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// User is the identity record for authentication and authorization.
type User struct {
	ID           int64
	Email        string
	Username     string
	FullName     string
	PasswordHash string

	Role       Role
	IsActive   bool
	IsVerified bool

	// Authentication tracking.
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time

	CreatedAt time.Time
}

// IsLocked reports whether the account is currently locked out.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPermission reports whether the user's role ranks at or above required.
// Roles are ranked guest < user < admin; an unknown role ranks lowest.
func (u *User) HasPermission(required Role) bool {
	return roleRanks[u.Role] >= roleRanks[required]
}
