package sessions

import "errors"

var (
	// ErrValidation is returned for missing or invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound is returned for a student that is not on the session roster.
	ErrNotFound = errors.New("not found")
)
