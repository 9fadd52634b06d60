package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the key expired or is now owned by
// another holder.
var ErrNotHeld = errors.New("lock is not held by this token")

// Locker guards a key for a bounded time. Lock returns the owner token that
// Unlock must present.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	client *redis.Client
	prefix string
}

func NewRedisLock(redisAddr string) (*RedisLock, error) {
	const op = "lock.NewRedisLock"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisLock{client: client, prefix: "slot-lock:"}, nil
}

func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	const op = "lock.RedisLock.Lock"

	token := uuid.NewString()

	acquired, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

func (r *RedisLock) Unlock(ctx context.Context, key, token string) error {
	const op = "lock.RedisLock.Unlock"

	released, err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if released == 0 {
		return fmt.Errorf("%s: %s: %w", op, key, ErrNotHeld)
	}

	return nil
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}

// NopLock always grants the lock. Used when no Redis address is configured;
// the store's unique constraint still guards every slot.
type NopLock struct{}

func (NopLock) Lock(context.Context, string, time.Duration) (string, bool, error) {
	return "", true, nil
}

func (NopLock) Unlock(context.Context, string, string) error { return nil }
