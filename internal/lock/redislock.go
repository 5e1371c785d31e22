// Package lock serialises read-modify-write cycles on shared Redis documents such as carts.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken before the wait budget ran out.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker provides a Redis-backed mutual exclusion lock.
type Locker struct {
	R            *redis.Client
	Prefix       string
	TTL          time.Duration
	Wait         time.Duration
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lock named key. The lock expires after TTL even if
// the holder dies, and is released when fn returns. Callers wait at most Wait to acquire it.
func (l Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	wait := l.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}

	name := l.Prefix + key
	token := uuid.NewString()
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		ok, err := l.R.SetNX(ctx, name, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		if ok {
			defer l.release(context.WithoutCancel(ctx), name, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-deadline.C:
			timer.Stop()
			return fmt.Errorf("lock %s: %w", name, ErrNotAcquired)
		case <-timer.C:
		}
	}
}

func (l Locker) release(ctx context.Context, name, token string) {
	_ = releaseScript.Run(ctx, l.R, []string{name}, token).Err()
}
