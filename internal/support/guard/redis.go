// internal/support/guard/redis.go
package guard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the guards with a shared Redis so rate-limit and dedup
// state holds across replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			// Without a TTL the counter would never reset; drop it so the
			// next request starts a fresh window instead of being limited
			// forever.
			s.client.Del(ctx, key)
			return count, window, err
		}
		return count, window, nil
	}

	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = window
	}
	return count, remaining, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, 1, ttl).Result()
}
