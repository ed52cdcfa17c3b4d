package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the lock stayed held for the whole wait window.
var ErrLockNotAcquired = errors.New("booking lock not acquired")

const lockRetryInterval = 25 * time.Millisecond

// LockStore handles per-booking distributed locking in Redis.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockStore creates a new LockStore whose locks expire after ttl.
func NewLockStore(client *redis.Client, ttl time.Duration) *LockStore {
	return &LockStore{client: client, ttl: ttl}
}

// WithBookingLock runs fn while holding lock:booking:<id>. Contenders poll until the
// lock frees up or the lock TTL elapses.
func (s *LockStore) WithBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:booking:%s", bookingID)
	token := uuid.NewString()

	if err := s.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		_ = s.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, s.ttl)
	defer cancel()

	return fn(lockCtx)
}

func (s *LockStore) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(s.ttl)
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (s *LockStore) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, s.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release booking lock: %w", err)
	}
	return nil
}
