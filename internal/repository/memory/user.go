package memory

import (
	"context"
	"sort"
	"sync"

	"fixitnow/internal/domain"
	"fixitnow/internal/repository"
)

// UserRepository is an in-memory user directory.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

// Create adds a new user.
func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	u.ServiceTypes = append([]string(nil), user.ServiceTypes...)
	r.users[u.ID] = &u
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	c.ServiceTypes = append([]string(nil), u.ServiceTypes...)
	return &c, nil
}

// ListActiveTechnicians returns active technicians offering serviceType, most experienced first.
func (r *UserRepository) ListActiveTechnicians(_ context.Context, serviceType string, limit int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.User
	for _, u := range r.users {
		if u.IsActiveTechnician() && u.Offers(serviceType) {
			c := *u
			c.ServiceTypes = append([]string(nil), u.ServiceTypes...)
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedJobs != out[j].CompletedJobs {
			return out[i].CompletedJobs > out[j].CompletedJobs
		}
		return out[i].ID < out[j].ID
	})
	if limit = repository.NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IncrementCompletedJobs bumps the technician's completed-job counter.
func (r *UserRepository) IncrementCompletedJobs(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.CompletedJobs++
	return nil
}
