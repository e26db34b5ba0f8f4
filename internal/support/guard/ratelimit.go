// internal/support/guard/ratelimit.go
package guard

import (
	"context"
	"time"
)

// GlobalBucket scopes requests that arrive without a usable client IP.
const GlobalBucket = "global"

// RateLimiter enforces a fixed-window request cap per scoping key.
type RateLimiter struct {
	store  Store
	limit  int64
	window time.Duration
}

func NewRateLimiter(store Store, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts the request against the key's active window. When the cap is
// exceeded it returns ok=false and a positive retry-after hint. A store
// failure fails open: guard trouble must not block ticket creation.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if key == "" {
		key = GlobalBucket
	}
	count, remaining, err := l.store.Incr(ctx, "rl:ticket:"+key, l.window)
	if err != nil {
		return true, 0, err
	}
	if count > l.limit {
		if remaining <= 0 {
			remaining = time.Second
		}
		return false, remaining, nil
	}
	return true, 0, nil
}
