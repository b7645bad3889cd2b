// Package common defines shared constants and sentinel errors used across
// the webstack server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authorization errors.
	ErrPermissionDenied = errors.New("permission denied")

	// Token lifecycle errors. Both collapse to ErrorUnauthorized at the
	// transport edge; the distinction is only used internally (e.g. to
	// suggest a refresh flow).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Account state errors.
	ErrAccountLocked   = errors.New("account locked")
	ErrAccountDisabled = errors.New("account disabled")

	// Validation errors (bad input from the caller).
	ErrValidation = errors.New("validation error")

	// Rate limiting.
	ErrRateLimited = errors.New("rate limit exceeded")
)
