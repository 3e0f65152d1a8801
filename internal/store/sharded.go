package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buraksezer/consistent"
	"github.com/cespare/xxhash/v2"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// hasher 实现 consistent.Hasher 接口，使用 xxhash 算法
type hasher struct{}

// Sum64 实现哈希函数
func (h hasher) Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// member 实现 consistent.Member 接口，用于表示哈希环中的分片
type member string

// String 实现 consistent.Member 接口的 String 方法
func (m member) String() string {
	return string(m)
}

// Shard 代表一个命名分片
type Shard struct {
	Name  string
	Store Store
}

// ShardedStore 代表按键一致性哈希分布到多个存储的组合存储
// 同一个键始终落在同一分片，单键原子操作的语义由分片自身保证
type ShardedStore struct {
	ring   *consistent.Consistent
	shards map[string]Store
	order  []string
}

// NewShardedStore 创建分片存储
func NewShardedStore(shards ...Shard) (*ShardedStore, error) {
	if len(shards) == 0 {
		return nil, ErrEmptyShards
	}

	members := make([]consistent.Member, 0, len(shards))
	s := &ShardedStore{
		shards: make(map[string]Store, len(shards)),
		order:  make([]string, 0, len(shards)),
	}
	for _, shard := range shards {
		if shard.Store == nil {
			return nil, fmt.Errorf("%w: shard %s", ErrNilStore, shard.Name)
		}
		if _, exists := s.shards[shard.Name]; exists {
			return nil, fmt.Errorf("duplicate shard name: %s", shard.Name)
		}
		s.shards[shard.Name] = shard.Store
		s.order = append(s.order, shard.Name)
		members = append(members, member(shard.Name))
	}

	s.ring = consistent.New(members, consistent.Config{
		Hasher:            hasher{},
		PartitionCount:    271,
		ReplicationFactor: 20,
		Load:              1.25,
	})

	return s, nil
}

// locate 返回键所在的分片
func (s *ShardedStore) locate(key string) Store {
	m := s.ring.LocateKey([]byte(key))
	if m == nil {
		return s.shards[s.order[0]]
	}
	return s.shards[m.String()]
}

// ShardFor 返回键所在分片的名称
func (s *ShardedStore) ShardFor(key string) string {
	if m := s.ring.LocateKey([]byte(key)); m != nil {
		return m.String()
	}
	return s.order[0]
}

// Get 读取键值
func (s *ShardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.locate(key).Get(ctx, key)
}

// Put 写入键值
func (s *ShardedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.locate(key).Put(ctx, key, value, ttl)
}

// Increment 原子自增计数器
func (s *ShardedStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.locate(key).Increment(ctx, key, ttl)
}

// Update 原子读改写
func (s *ShardedStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	return s.locate(key).Update(ctx, key, ttl, fn)
}

// Ping 检查所有分片，任一分片不可用即返回错误
func (s *ShardedStore) Ping(ctx context.Context) error {
	for _, name := range s.order {
		if err := s.shards[name].Ping(ctx); err != nil {
			return fmt.Errorf("shard %s: %w", name, err)
		}
	}
	return nil
}

// Close 关闭所有分片
func (s *ShardedStore) Close() error {
	var errs []error
	for _, name := range s.order {
		if err := s.shards[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Type 获取存储类型
func (s *ShardedStore) Type() string {
	return constants.StoreSharded
}
