package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// callbackError 标记来自 UpdateFunc 的错误，与存储自身的错误区分
type callbackError struct {
	err error
}

func (e *callbackError) Error() string { return e.err.Error() }

func (e *callbackError) Unwrap() error { return e.err }

// RedisStore 代表基于 Redis 的存储，读改写通过 WATCH/MULTI 乐观事务完成
type RedisStore struct {
	client     redis.UniversalClient
	maxRetries int
}

// NewRedisClient 根据配置创建 Redis 客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewRedisStore 创建 Redis 存储
// client: Redis 客户端，存储关闭时一并关闭
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client:     client,
		maxRetries: constants.MaxUpdateRetries,
	}
}

// unavailable 将客户端错误包装为存储不可用错误
func unavailable(op string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: redis %s: %v", ErrUnavailable, op, err)
}

// Get 读取键值
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return value, nil
}

// Put 写入键值
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Increment 原子自增计数器，计数器创建时设置过期时间
// INCR 与 EXPIRE NX 在同一个 MULTI/EXEC 中执行，已有的过期时间不会被刷新
func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.ExpireNX(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable("incr", err)
	}
	return incr.Val(), nil
}

// Update 通过 WATCH/MULTI 执行读改写，冲突时重试
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return &callbackError{err: err}
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}

		// 被监视的键在事务提交前被修改，重新读取
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		var cbErr *callbackError
		if errors.As(err, &cbErr) {
			return cbErr.err
		}
		return unavailable("update", err)
	}

	return fmt.Errorf("%w: %s after %d attempts", ErrConflict, key, s.maxRetries)
}

// Ping 检查 Redis 是否可用
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close 关闭 Redis 客户端
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Type 获取存储类型
func (s *RedisStore) Type() string {
	return constants.StoreRedis
}
