package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when a lock could not be acquired before the context ended.
var ErrLockBusy = errors.New("lock busy")

// Locker serializes work per key. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex returns an in-process Locker. Entries are dropped once no
// caller holds or waits for them.
func NewKeyedMutex() Locker {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{ch: make(chan struct{}, 1)}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, m)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockBusy, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.ch
			k.release(key, m)
		})
	}, nil
}

func (k *keyedMutex) release(key string, m *refMutex) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	local      Locker
	client     *redis.Client
	keyFormat  string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker returns a Locker that holds the in-process lock and a redis
// key, so cycles running in different processes are serialized as well.
// keyFormat is a fmt pattern with one %s for the key.
func NewRedisLocker(client *redis.Client, keyFormat string, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisLocker{
		local:      NewKeyedMutex(),
		client:     client,
		keyFormat:  keyFormat,
		ttl:        ttl,
		retryDelay: 100 * time.Millisecond,
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := fmt.Sprintf(l.keyFormat, key)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			unlockLocal()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockBusy, redisKey, ctx.Err())
		}
	}

	return func() {
		// The caller's context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		unlockLocal()
	}, nil
}
