package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "al"

// RedisStore is a [CounterStore] over Redis INCR with fixed-window
// TTLs. Redis INCR is atomic, which is what makes concurrent Allow
// calls safe across processes.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. prefix namespaces the counter
// keys; an empty prefix selects the default.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Incr records one attempt and returns the window count plus remaining
// window time.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	counterKey := s.key(key)

	count, err := s.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := s.redis.Expire(ctx, counterKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return count, window, nil
	}

	remaining, err := s.redis.PTTL(ctx, counterKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if remaining < 0 {
		// Counter lost its TTL (crash between INCR and EXPIRE). Heal it
		// so the key cannot deny forever.
		if err := s.redis.Expire(ctx, counterKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		remaining = window
	}

	return count, remaining, nil
}

// Reset clears the counter for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
