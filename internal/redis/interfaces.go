package redis

import (
	"context"

	"fixitnow/internal/domain"
)

// LocationStoreInterface defines the interface for technician location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) error
	FindNearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]TechnicianPosition, error)
	RemoveLocation(ctx context.Context, technicianID string) error
}

// LockStoreInterface defines the interface for per-booking locking.
type LockStoreInterface interface {
	WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context) error) error
}

// CacheStoreInterface defines the technician cache operations.
type CacheStoreInterface interface {
	GetTechnician(ctx context.Context, id string) (*domain.User, error)
	SetTechnician(ctx context.Context, u *domain.User) error
	InvalidateTechnician(ctx context.Context, id string) error
	GetTechniciansBatch(ctx context.Context, ids []string) (map[string]*domain.User, []string, error)
	SetTechniciansBatch(ctx context.Context, users []*domain.User) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
