package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cogi:session:"

const (
	fieldUserID         = "user_id"
	fieldEmail          = "email"
	fieldActiveThreadID = "active_thread_id"
	fieldLastActivity   = "last_activity"
	fieldCreatedAt      = "created_at"
)

// setFieldScript writes one hash field and refreshes the TTL, but only if
// the session still exists.
var setFieldScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisStore keeps sessions as Redis hashes. Keys carry a TTL of twice the
// idle window so abandoned sessions are eventually reclaimed; the idle check
// itself stays with the authenticator.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore for the given idle window.
func NewRedisStore(rdb *redis.Client, idleWindow time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: 2 * idleWindow}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := r.rdb.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	s := &Session{
		ID:             id,
		UserID:         fields[fieldUserID],
		Email:          fields[fieldEmail],
		ActiveThreadID: fields[fieldActiveThreadID],
	}
	if s.LastActivity, err = time.Parse(time.RFC3339Nano, fields[fieldLastActivity]); err != nil {
		return nil, fmt.Errorf("decode session last_activity: %w", err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("decode session created_at: %w", err)
	}
	return s, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	key := redisKey(s.ID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldUserID:         s.UserID,
			fieldEmail:          s.Email,
			fieldActiveThreadID: s.ActiveThreadID,
			fieldLastActivity:   s.LastActivity.Format(time.RFC3339Nano),
			fieldCreatedAt:      s.CreatedAt.Format(time.RFC3339Nano),
		})
		pipe.PExpire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Touch implements Store.
func (r *RedisStore) Touch(ctx context.Context, id string, at time.Time) error {
	return r.setField(ctx, id, fieldLastActivity, at.Format(time.RFC3339Nano))
}

// SetActiveThread implements Store.
func (r *RedisStore) SetActiveThread(ctx context.Context, id, threadID string) error {
	return r.setField(ctx, id, fieldActiveThreadID, threadID)
}

func (r *RedisStore) setField(ctx context.Context, id, field, value string) error {
	ok, err := setFieldScript.Run(ctx, r.rdb, []string{redisKey(id)}, field, value, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis update session %s: %w", field, err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
