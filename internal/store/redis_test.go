package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(NewRedisClient(&config.RedisConfig{Address: mr.Addr(), PoolSize: 8}))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	value, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	value, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(time.Minute)
	value, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRedisStore_Increment(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	n, err := s.Increment(ctx, "hour", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Hour, mr.TTL("hour"))

	mr.FastForward(10 * time.Minute)
	n, err = s.Increment(ctx, "hour", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 50*time.Minute, mr.TTL("hour"), "ttl only set on creation")
}

func TestRedisStore_IncrementAlwaysExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	t.Run("counter without expiry gets one", func(t *testing.T) {
		require.NoError(t, mr.Set("orphan", "7"))
		require.Zero(t, mr.TTL("orphan"))

		n, err := s.Increment(ctx, "orphan", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)
		assert.Equal(t, time.Hour, mr.TTL("orphan"))
	})

	t.Run("concurrent increments", func(t *testing.T) {
		const workers, perWorker = 8, 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, err := s.Increment(ctx, "shared", time.Minute)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := mr.Get("shared")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers*perWorker), got)
		assert.Equal(t, time.Minute, mr.TTL("shared"))
	})

	t.Run("zero ttl leaves key persistent", func(t *testing.T) {
		_, err := s.Increment(ctx, "forever", 0)
		require.NoError(t, err)
		assert.Zero(t, mr.TTL("forever"))
	})
}

func TestRedisStore_Update(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	err := s.Update(ctx, "state", time.Minute, func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte("a"), nil
	})
	require.NoError(t, err)

	got, err := mr.Get("state")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
	assert.Equal(t, time.Minute, mr.TTL("state"))

	// 返回 nil 不写入
	require.NoError(t, s.Update(ctx, "state", time.Hour, func(current []byte) ([]byte, error) {
		assert.Equal(t, []byte("a"), current)
		return nil, nil
	}))
	assert.Equal(t, time.Minute, mr.TTL("state"))

	boom := errors.New("boom")
	err = s.Update(ctx, "state", time.Minute, func([]byte) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestRedisStore_ConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	const workers, perWorker = 4, 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := s.Update(ctx, "counter", time.Minute, func(current []byte) ([]byte, error) {
					n, _ := strconv.Atoi(string(current))
					return []byte(strconv.Itoa(n + 1)), nil
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, ErrConflict)
				}
			}
		}()
	}
	wg.Wait()

	// 每次成功的更新恰好生效一次，不会丢失也不会重复
	value, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(succeeded), string(value))
	assert.Positive(t, succeeded)
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)
	require.NoError(t, s.Ping(ctx))
	mr.SetError("ERR injected failure")

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v"), time.Second), ErrUnavailable)
	_, err = s.Increment(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), ErrUnavailable)

	mr.SetError("")
	assert.NoError(t, s.Ping(ctx))
}

func TestRedisStore_Closed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}
