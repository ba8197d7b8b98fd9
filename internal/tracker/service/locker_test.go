package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	locker := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "alice")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.(*keyedMutex).locks)
}

func TestKeyedMutex_IndependentKeysAndTimeout(t *testing.T) {
	locker := NewKeyedMutex()

	unlock, err := locker.Lock(context.Background(), "alice")
	require.NoError(t, err)

	other, err := locker.Lock(context.Background(), "bob")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "alice")
	assert.ErrorIs(t, err, ErrLockBusy)

	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "alice")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// Two lockers stand in for two processes sharing one redis.
	first := NewRedisLocker(rdb, "tracker:lock:%s", time.Minute)
	second := NewRedisLocker(rdb, "tracker:lock:%s", time.Minute)

	unlock, err := first.Lock(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, mr.Exists("tracker:lock:alice"))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx, "alice")
	assert.ErrorIs(t, err, ErrLockBusy)

	unlock()
	assert.False(t, mr.Exists("tracker:lock:alice"))

	unlock, err = second.Lock(context.Background(), "alice")
	require.NoError(t, err)
	unlock()
}
