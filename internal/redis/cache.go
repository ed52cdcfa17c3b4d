package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"fixitnow/internal/domain"
)

// TechnicianCacheTTL bounds how stale an activity flag or service list may be.
const TechnicianCacheTTL = 30 * time.Second

const technicianCachePrefix = "cache:technician:"

// CacheStore handles technician directory caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetTechnician retrieves a technician from cache. A miss returns nil, nil.
func (s *CacheStore) GetTechnician(ctx context.Context, id string) (*domain.User, error) {
	data, err := s.client.Get(ctx, technicianCachePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetTechnician stores a technician in cache.
func (s *CacheStore) SetTechnician(ctx context.Context, u *domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, technicianCachePrefix+u.ID, data, TechnicianCacheTTL).Err()
}

// InvalidateTechnician removes a technician from cache.
func (s *CacheStore) InvalidateTechnician(ctx context.Context, id string) error {
	return s.client.Del(ctx, technicianCachePrefix+id).Err()
}

// GetTechniciansBatch retrieves several technicians with one pipeline.
// Returns the cached entries and the ids that missed.
func (s *CacheStore) GetTechniciansBatch(ctx context.Context, ids []string) (map[string]*domain.User, []string, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, technicianCachePrefix+id)
	}

	// Exec reports redis.Nil when any key is missing; per-command results are checked below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	var missing []string
	for _, id := range ids {
		data, err := cmds[id].Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var u domain.User
		if err := json.Unmarshal(data, &u); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &u
	}

	return result, missing, nil
}

// SetTechniciansBatch stores several technicians with one pipeline.
func (s *CacheStore) SetTechniciansBatch(ctx context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, u := range users {
		data, err := json.Marshal(u)
		if err != nil {
			continue
		}
		pipe.Set(ctx, technicianCachePrefix+u.ID, data, TechnicianCacheTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}
