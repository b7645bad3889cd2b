package models

import "time"

// APIKey grants programmatic access to a user's account. Only the SHA-256
// hash of the opaque secret is stored; the plaintext is shown to the caller
// exactly once at creation time.
type APIKey struct {
	ID      int64
	UserID  int64
	Name    string
	KeyHash string

	IsActive  bool
	ExpiresAt *time.Time
	Scopes    []string

	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the key has passed its expiry time.
// Keys without an expiry never expire.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return !time.Now().Before(*k.ExpiresAt)
}
