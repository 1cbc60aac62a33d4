package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cogi/internal/logger"
)

const redisLockPrefix = "cogi:lock:"

// releaseScript deletes the lock only if it still holds our token, so a lock
// that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a Locker shared by every API instance using the same Redis.
// Locks expire after ttl so a crashed holder cannot block a thread forever.
type RedisLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl must exceed the longest expected
// critical section.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, retryDelay: 50 * time.Millisecond}
}

// Lock implements Locker. It polls with SET NX until the lock is free or ctx ends.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := redisLockPrefix + key

	ticker := time.NewTicker(r.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Release must run even if the request context is already cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, r.rdb, []string{redisKey}, token).Err(); err != nil {
			logger.Get().Warnw("failed to release lock", "key", key, "error", err)
		}
	}, nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
