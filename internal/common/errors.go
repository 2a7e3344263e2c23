// Package common defines shared constants and sentinel errors used across
// the sample-submission server. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Allocation errors. ErrSlotTaken is retryable: another submission
	// claimed the same primary key first.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrSlotTaken        = errors.New("sample slot taken")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
