// Package common defines shared constants and sentinel errors used across the
// capsule server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors (malformed unlock time, empty recipient, etc).
	ErrorValidation = errors.New("validation error")

	// ErrorCapsuleUnlocked rejects mutations that are only legal while a
	// capsule is still locked.
	ErrorCapsuleUnlocked = errors.New("capsule already unlocked")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// External side-effect failures. Both are caught and logged after the
	// unlock transition has committed, never propagated to abort it.
	ErrDelivery = errors.New("delivery error")
	ErrLookup   = errors.New("lookup error")
)
