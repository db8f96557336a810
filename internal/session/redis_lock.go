package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// unlockScript deletes the key only if we still own it.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker implements DistributedLocker with SET NX PX.
type RedisLocker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// NewRedisLocker creates a Redis locker. Keys are prefix + "lock:" + key.
func NewRedisLocker(client *backend.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		poll:   50 * time.Millisecond,
	}
}

func (l *RedisLocker) key(k string) string {
	return l.prefix + "lock:" + k
}

// Lock polls until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.key(key)
	token := uuid.NewString()

	try := func() (bool, error) {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		return ok, nil
	}

	unlock := func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}

	if ok, err := try(); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return unlock, nil
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			ok, err := try()
			if err != nil {
				return nil, err
			}
			if ok {
				return unlock, nil
			}
		}
	}
}
