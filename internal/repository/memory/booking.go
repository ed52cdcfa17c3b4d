// Package memory holds process-local repositories used for DB_DRIVER=memory and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// BookingRepository keeps bookings in a map guarded by a mutex. Stored values are
// cloned on the way in and out so callers never alias them.
type BookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

// NewBookingRepository creates an empty in-memory booking repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{bookings: make(map[string]*domain.Booking)}
}

// Create persists a new booking at version 1.
func (r *BookingRepository) Create(_ context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.Version = 1
	r.bookings[b.ID] = b.Clone()
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b.Clone(), nil
}

// List retrieves bookings matching filter, newest first.
func (r *BookingRepository) List(_ context.Context, f repository.BookingFilter) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Booking
	for _, b := range r.bookings {
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.ParticipantID != "" && !isParticipant(b, f.ParticipantID) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := repository.NormalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListExpiredBroadcasts returns active, unclaimed broadcasts whose expiresAt is before now.
func (r *BookingRepository) ListExpiredBroadcasts(_ context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Booking
	for _, b := range r.bookings {
		bs := b.BroadcastState
		if bs == nil || !bs.IsActive || bs.AcceptedBy != "" || bs.ExpiresAt == nil || !bs.ExpiresAt.Before(now) {
			continue
		}
		out = append(out, b.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].BroadcastState.ExpiresAt.Before(*out[j].BroadcastState.ExpiresAt)
	})
	if limit = repository.NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update replaces the booking if the stored version still equals expectedVersion.
func (r *BookingRepository) Update(_ context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.write(b, expectedVersion, false)
}

// Claim replaces the booking if the stored version matches and no winner is stored yet.
func (r *BookingRepository) Claim(_ context.Context, b *domain.Booking, expectedVersion int64) error {
	return r.write(b, expectedVersion, true)
}

func (r *BookingRepository) write(b *domain.Booking, expectedVersion int64, claim bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if claim && stored.AcceptedBy() != "" {
		return repository.ErrAlreadyClaimed
	}
	if stored.Version != expectedVersion {
		return repository.ErrConflict
	}

	b.Version = expectedVersion + 1
	r.bookings[b.ID] = b.Clone()
	return nil
}

func isParticipant(b *domain.Booking, userID string) bool {
	if b.TechnicianID == userID {
		return true
	}
	if b.BroadcastState == nil {
		return false
	}
	_, ok := b.BroadcastState.Candidates.Find(userID)
	return ok
}
