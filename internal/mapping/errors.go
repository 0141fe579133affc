package mapping

import "errors"

var (
	// ErrConflict is returned when an operation would violate the one
	// mapping per (central user, service) rule, or when a sync transition
	// is attempted from an incompatible status.
	ErrConflict = errors.New("mapping conflict")

	// ErrNotFound is returned when a mapping or central user does not exist.
	ErrNotFound = errors.New("mapping not found")

	// ErrValidation is returned when a request is missing required fields.
	// Validation always happens before any write is attempted.
	ErrValidation = errors.New("invalid mapping request")
)
