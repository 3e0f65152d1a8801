package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// entry 代表一条带过期时间的记录
type entry struct {
	value    []byte
	expireAt time.Time
}

// stripe 代表一段独立加锁的存储分区
type stripe struct {
	mu    sync.Mutex
	items map[string]entry
}

// MemoryStore 代表进程内存储，按键哈希分段加锁，后台定期清理过期记录
type MemoryStore struct {
	stripes  []*stripe
	now      func() time.Time
	interval time.Duration
	closed   atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// MemoryOption 代表内存存储的可选配置
type MemoryOption func(*MemoryStore)

// WithShards 设置分段数量
func WithShards(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.stripes = make([]*stripe, n)
		}
	}
}

// WithCleanupInterval 设置过期清理间隔，不大于 0 时不启动后台清理
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.interval = d
	}
}

// WithNow 设置时间来源，用于测试
func WithNow(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		stripes:  make([]*stripe, constants.DefaultMemoryShards),
		now:      time.Now,
		interval: time.Duration(constants.DefaultMemoryCleanupInterval) * time.Millisecond,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.stripes {
		s.stripes[i] = &stripe{items: make(map[string]entry)}
	}

	if s.interval > 0 {
		s.wg.Add(1)
		go s.janitor()
	}

	return s
}

// stripeFor 返回键所在的分段
func (s *MemoryStore) stripeFor(key string) *stripe {
	return s.stripes[xxhash.Sum64String(key)%uint64(len(s.stripes))]
}

// load 读取未过期的记录，调用方需持有分段锁
func (st *stripe) load(key string, now time.Time) ([]byte, bool) {
	e, ok := st.items[key]
	if !ok {
		return nil, false
	}
	if !e.expireAt.IsZero() && !now.Before(e.expireAt) {
		delete(st.items, key)
		return nil, false
	}
	return e.value, true
}

// store 写入记录，调用方需持有分段锁
func (st *stripe) store(key string, value []byte, expireAt time.Time) {
	st.items[key] = entry{value: value, expireAt: expireAt}
}

func (s *MemoryStore) expireAt(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get 读取键值
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	value, ok := st.load(key, s.now())
	if !ok {
		return nil, nil
	}
	return cloneBytes(value), nil
}

// Put 写入键值
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}

	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.store(key, cloneBytes(value), s.expireAt(ttl))
	return nil
}

// Increment 原子自增计数器
func (s *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := s.now()
	current, ok := st.load(key, now)
	if !ok {
		st.store(key, []byte("1"), s.expireAt(ttl))
		return 1, nil
	}

	// 非数字内容按 0 处理，与计数器重新开始等价
	n, _ := strconv.ParseInt(string(current), 10, 64)
	n++
	e := st.items[key]
	st.store(key, []byte(strconv.FormatInt(n, 10)), e.expireAt)
	return n, nil
}

// Update 在分段锁内执行读改写
func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if s.closed.Load() {
		return ErrClosed
	}

	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	current, _ := st.load(key, s.now())
	next, err := fn(cloneBytes(current))
	if err != nil {
		return err
	}
	if next != nil {
		st.store(key, cloneBytes(next), s.expireAt(ttl))
	}
	return nil
}

// Ping 检查存储是否可用
func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close 停止后台清理
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}

// Type 获取存储类型
func (s *MemoryStore) Type() string {
	return constants.StoreMemory
}

// Len 返回未过期的记录数
func (s *MemoryStore) Len() int {
	now := s.now()
	total := 0
	for _, st := range s.stripes {
		st.mu.Lock()
		for _, e := range st.items {
			if e.expireAt.IsZero() || now.Before(e.expireAt) {
				total++
			}
		}
		st.mu.Unlock()
	}
	return total
}

// janitor 定期清理过期记录
func (s *MemoryStore) janitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.deleteExpired()
		}
	}
}

// deleteExpired 删除所有已过期的记录
func (s *MemoryStore) deleteExpired() {
	now := s.now()
	for _, st := range s.stripes {
		st.mu.Lock()
		for key, e := range st.items {
			if !e.expireAt.IsZero() && !now.Before(e.expireAt) {
				delete(st.items, key)
			}
		}
		st.mu.Unlock()
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
