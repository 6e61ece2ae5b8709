package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/optica-engine/internal/apperr"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived mutexes shared by every API instance.
type Locker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{
		client: redislock.New(rdb),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	}
}

func (l *Locker) Lock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, fmt.Sprintf(KeyLock, name), ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s busy: %w", name, apperr.ErrConflict)
	}
	if err != nil {
		return nil, apperr.Dependency("redis", err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
