package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrValidation is returned when a request is malformed or incomplete.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a booking or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when the action is illegal from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyClaimed is returned when another technician won the broadcast.
	ErrAlreadyClaimed = errors.New("booking already claimed")

	// ErrExpired is returned when the broadcast offer window closed.
	ErrExpired = errors.New("broadcast expired")
)

// ValidationError lists the offending fields and why they were rejected.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError reports an actor acting outside its ownership. It matches ErrForbidden.
type ForbiddenError struct {
	Role   Role
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %q may not %s this booking", e.Role, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// InvalidTransitionError reports an action the state machine does not allow from From
// for Role. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	From   Status
	Action Action
	Role   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed from status %q", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AlreadyClaimedError is returned to every broadcast candidate that lost the accept
// race. Its message is fixed and shown to technicians as is. It matches ErrAlreadyClaimed.
type AlreadyClaimedError struct {
	BookingID string
}

func (e *AlreadyClaimedError) Error() string {
	return "this request was already accepted by another technician"
}

func (e *AlreadyClaimedError) Unwrap() error { return ErrAlreadyClaimed }

// ExpiredError reports an accept that arrived after the broadcast window closed.
// It matches ErrExpired.
type ExpiredError struct {
	BookingID string
	ExpiresAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("booking %s stopped accepting responses at %s", e.BookingID, e.ExpiresAt.Format(time.RFC3339))
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }
