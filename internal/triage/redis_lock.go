package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionLockPrefix   = "triage:lock:"
	defaultLockTTL      = 30 * time.Second
	defaultLockInterval = 50 * time.Millisecond
)

// releaseLockScript deletes the lock only if this holder still owns it, so a
// slow cycle that outlives the TTL cannot release a successor's lock.
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisSessionLock is a SessionLocker shared across worker replicas. The
// lock is a SETNX key with a TTL; a holder that dies without releasing stalls
// the session for at most the TTL.
type RedisSessionLock struct {
	client   *redis.Client
	ttl      time.Duration
	interval time.Duration
}

// NewRedisSessionLock creates a cross-process session locker.
func NewRedisSessionLock(client *redis.Client) *RedisSessionLock {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	return &RedisSessionLock{
		client:   client,
		ttl:      defaultLockTTL,
		interval: defaultLockInterval,
	}
}

// Acquire polls until the session lock is taken or ctx is done.
func (l *RedisSessionLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := sessionLockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("triage: acquire session lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err()
	}
	return release, nil
}
