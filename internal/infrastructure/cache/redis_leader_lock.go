package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this instance still holds it,
// so a lock that expired and was re-acquired elsewhere is never removed
// by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaderLock is a best-effort distributed lock over Redis SETNX.
// It gates background work so only one instance runs it per interval;
// the guarded work must stay safe to run twice, because the lock can
// expire mid-pass.
type RedisLeaderLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLeaderLock creates a leader lock on the given key.
// The TTL should exceed the longest expected pass so the lock outlives it.
func NewRedisLeaderLock(client *redis.Client, key string, ttl time.Duration) *RedisLeaderLock {
	return &RedisLeaderLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock. Returns true if this instance now
// holds it, false if another instance does.
func (l *RedisLeaderLock) Acquire(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	return acquired, nil
}

// Release drops the lock if this instance still holds it
func (l *RedisLeaderLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
