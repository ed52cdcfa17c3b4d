package repository

import (
	"context"
	"time"

	"fixitnow/internal/domain"
)

// BookingFilter narrows a booking listing. Zero fields do not filter.
type BookingFilter struct {
	CustomerID string
	// ParticipantID matches the assigned technician or any broadcast candidate.
	ParticipantID string
	Status        domain.Status
	Limit         int
}

// DefaultListLimit bounds listings that do not set a limit.
const DefaultListLimit = 100

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking at version 1.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// List retrieves bookings matching filter, newest first.
	List(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error)

	// Update replaces the booking only if the stored version equals expectedVersion.
	// On success booking.Version is advanced. A stale version returns ErrConflict.
	Update(ctx context.Context, booking *domain.Booking, expectedVersion int64) error

	// Claim is Update with the extra condition that the stored broadcast has no winner.
	// A stored winner returns ErrAlreadyClaimed.
	Claim(ctx context.Context, booking *domain.Booking, expectedVersion int64) error

	// ListExpiredBroadcasts returns active broadcasts whose expiresAt is before now.
	ListExpiredBroadcasts(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error)
}

// NormalizeLimit applies DefaultListLimit to non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
