package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a guarded transition loses its race:
	// the precondition held when the caller decided to act but no longer
	// holds at write time. Callers surface it, they never retry blindly.
	ErrConflict = errors.New("conflicting state transition")
)
