package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "shipd:deploy:"

// Redis is a Guard shared by every shipd instance pointed at the same Redis.
// Locks expire after TTL unless refreshed, so a crashed holder cannot block a
// project forever.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, keyPrefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("guard: obtain %s: %w", key, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(lock, key, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				zap.S().Warnf("guard: release %s: %v", key, err)
			}
		})
	}, nil
}

// keepAlive refreshes the lock at half its TTL until stop is closed.
func (r *Redis) keepAlive(lock *redislock.Lock, key string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := lock.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				zap.S().Warnf("guard: refresh %s: %v", key, err)
			}
		}
	}
}
