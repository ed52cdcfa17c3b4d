package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional write finds a different stored version.
	ErrConflict = errors.New("version conflict")

	// ErrAlreadyClaimed is returned by Claim when the stored booking already has a winner.
	ErrAlreadyClaimed = errors.New("booking already claimed")
)
