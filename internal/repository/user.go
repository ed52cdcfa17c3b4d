package repository

import (
	"context"

	"fixitnow/internal/domain"
)

// UserRepository defines the directory operations the booking engine relies on.
type UserRepository interface {
	// Create adds a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// ListActiveTechnicians returns active technicians offering serviceType.
	ListActiveTechnicians(ctx context.Context, serviceType string, limit int) ([]*domain.User, error)

	// IncrementCompletedJobs bumps the technician's completed-job counter.
	IncrementCompletedJobs(ctx context.Context, id string) error
}
