package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by another replica is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a Locker backed by SET NX PX. The TTL bounds how long a crashed
// holder can block others.
type Redis struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
	log   *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, ttl, wait time.Duration, log *slog.Logger) *Redis {
	return &Redis{
		rdb:   rdb,
		ttl:   ttl,
		wait:  wait,
		retry: 25 * time.Millisecond,
		log:   log.With("component", "redis-lock"),
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	waitCtx := ctx
	if r.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(waitCtx, key, token, r.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, errors.Join(ErrNotAcquired, waitCtx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, errors.Join(ErrNotAcquired, waitCtx.Err())
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
				r.log.Warn("lock:release-failed", slog.String("key", key), slog.Any("error", err))
			}
		})
	}
}

// NewRedisClient builds a client from address settings and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
