package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidID    = errors.New("empty identifier")

	// ErrDuplicateEvent is returned when a session already holds an event
	// with the same id. The stored event is left unchanged.
	ErrDuplicateEvent = errors.New("duplicate session event")
)
