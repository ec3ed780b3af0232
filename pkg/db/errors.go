package db

import "errors"

// Adapters translate driver errors into these sentinels so callers never
// depend on a specific store's error types.
var (
	// ErrNotFound is returned when a row lookup matches nothing
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the store aborted the transaction because
	// of concurrent modification. The whole transaction may be retried.
	ErrConflict = errors.New("transaction conflict")

	// ErrAlreadyExists is returned on unique constraint violations
	ErrAlreadyExists = errors.New("already exists")

	// ErrReferenced is returned when a delete is blocked by a foreign key
	ErrReferenced = errors.New("row is still referenced")
)
