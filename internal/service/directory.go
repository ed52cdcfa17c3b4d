package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fixitnow/internal/domain"
	"fixitnow/internal/redis"
	"fixitnow/internal/repository"
)

// Directory serves technician lookups from the user repository through an optional
// Redis read-through cache.
type Directory struct {
	users  repository.UserRepository
	cache  redis.CacheStoreInterface
	logger *slog.Logger
}

// NewDirectory creates a new Directory. cache may be nil.
func NewDirectory(users repository.UserRepository, cache redis.CacheStoreInterface, logger *slog.Logger) *Directory {
	return &Directory{users: users, cache: cache, logger: logger}
}

// FindActiveTechnician returns the technician or a NotFoundError if the user is
// missing, inactive or not a technician.
func (d *Directory) FindActiveTechnician(ctx context.Context, id string) (*domain.User, error) {
	if d.cache != nil {
		cached, err := d.cache.GetTechnician(ctx, id)
		if err != nil {
			d.logger.Warn("technician cache read failed", "technician_id", id, "error", err)
		}
		if cached != nil && cached.IsActiveTechnician() {
			return cached, nil
		}
	}

	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &domain.NotFoundError{Entity: "technician", ID: id}
		}
		return nil, fmt.Errorf("load technician %s: %w", id, err)
	}
	if !u.IsActiveTechnician() {
		return nil, &domain.NotFoundError{Entity: "technician", ID: id}
	}

	if d.cache != nil {
		if err := d.cache.SetTechnician(ctx, u); err != nil {
			d.logger.Warn("technician cache write failed", "technician_id", id, "error", err)
		}
	}
	return u, nil
}

// ActiveTechnicians resolves ids to active technicians, preserving order and
// skipping anyone missing or inactive.
func (d *Directory) ActiveTechnicians(ctx context.Context, ids []string) ([]*domain.User, error) {
	found := make(map[string]*domain.User, len(ids))
	missing := ids

	if d.cache != nil {
		cached, miss, err := d.cache.GetTechniciansBatch(ctx, ids)
		if err != nil {
			d.logger.Warn("technician cache batch read failed", "error", err)
		} else {
			found, missing = cached, miss
		}
	}

	var loaded []*domain.User
	for _, id := range missing {
		u, err := d.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load technician %s: %w", id, err)
		}
		found[id] = u
		loaded = append(loaded, u)
	}

	if d.cache != nil && len(loaded) > 0 {
		if err := d.cache.SetTechniciansBatch(ctx, loaded); err != nil {
			d.logger.Warn("technician cache batch write failed", "error", err)
		}
	}

	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok && u.IsActiveTechnician() {
			out = append(out, u)
		}
	}
	return out, nil
}

// ListActiveTechnicians returns active technicians offering serviceType.
func (d *Directory) ListActiveTechnicians(ctx context.Context, serviceType string, limit int) ([]*domain.User, error) {
	return d.users.ListActiveTechnicians(ctx, serviceType, limit)
}

// IncrementCompletedJobs bumps the counter and drops the cached copy.
func (d *Directory) IncrementCompletedJobs(ctx context.Context, technicianID string) error {
	if err := d.users.IncrementCompletedJobs(ctx, technicianID); err != nil {
		return err
	}
	if d.cache != nil {
		if err := d.cache.InvalidateTechnician(ctx, technicianID); err != nil {
			d.logger.Warn("technician cache invalidate failed", "technician_id", technicianID, "error", err)
		}
	}
	return nil
}
