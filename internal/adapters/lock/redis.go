package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrNotObtained = errors.New("lock not obtained")

// Redis serializes work across instances through redislock. Keys are
// prefixed with "lock:".
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(rdb redis.UniversalClient, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Redis{locker: redislock.New(rdb), ttl: ttl, wait: wait}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()
	lockKey := "lock:" + key
	l, err := r.locker.Obtain(waitCtx, lockKey, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", lockKey, err)
	}
	return func() {
		// release on a fresh context: the request may already be cancelled
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("key", lockKey).Msg("failed to release redis lock")
		}
	}, nil
}
