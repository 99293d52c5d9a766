package lock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"greenlight-billing/internal/domain"
	"greenlight-billing/pkg/logger"
)

const (
	unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Lock is a single Redis key held with SET NX and released only by its holder.
type Lock struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLock(client redis.UniversalClient, key, value string) *Lock {
	return &Lock{
		client: client,
		key:    key,
		value:  value,
	}
}

func (l *Lock) Lock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLockHeld, l.key)
	}
	return nil
}

func (l *Lock) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, lock for key %s expired or is held by another owner", l.key)
	}
	return nil
}

func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, fmt.Sprintf("%d", ttl.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("extend failed, lock for key %s expired or is held by another owner", l.key)
	}
	return nil
}

// Wait retries Lock with jitter until it succeeds, wait elapses or ctx is done.
func (l *Lock) Wait(ctx context.Context, ttl, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		err := l.Lock(ctx, ttl)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(10+rand.Intn(90)) * time.Millisecond):
		}
	}
}

// RedisLocker is a Locker shared by every API instance.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	token := uuid.New().String()
	held := make([]*Lock, 0, len(keys))

	for _, key := range keys {
		l := NewLock(r.client, r.prefix+key, token)
		if err := l.Wait(ctx, r.ttl, r.wait); err != nil {
			r.unlockAll(held)
			return nil, err
		}
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unlockAll(held) })
	}, nil
}

func (r *RedisLocker) unlockAll(locks []*Lock) {
	for i := len(locks) - 1; i >= 0; i-- {
		if err := locks[i].Unlock(context.Background()); err != nil {
			logger.GetLogger().WithError(err).WithField("key", locks[i].key).Warn("Failed to release lock")
		}
	}
}
