package models

import "time"

// RefreshToken maps a refresh token's jti claim to its owner for
// server-side revocation. Rows are deactivated on logout, never deleted,
// so revocations remain auditable.
type RefreshToken struct {
	ID        int64
	UserID    int64
	JTI       string
	IsActive  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
