package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an insert violates a uniqueness
	// constraint, such as a second OAuth client for the same issuer.
	ErrConflict = errors.New("record already exists")
)
