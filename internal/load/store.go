package load

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/store"
	"golang.org/x/sync/singleflight"
)

// StoreProvider 代表从共享存储读取外部发布负载值的负载来源
// 读取结果在刷新间隔内缓存，并发的刷新请求合并为一次存储读取
type StoreProvider struct {
	store   store.Store
	key     string
	refresh time.Duration
	now     func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	cached    float64
	fetchedAt time.Time
	valid     bool
}

// NewStoreProvider 创建存储负载来源
// s: 共享存储
// key: 负载值所在的键
// refresh: 缓存刷新间隔，不大于 0 时每次都读取存储
func NewStoreProvider(s store.Store, key string, refresh time.Duration) *StoreProvider {
	return &StoreProvider{
		store:   s,
		key:     key,
		refresh: refresh,
		now:     time.Now,
	}
}

// Load 返回当前负载值，存储中不存在或无法解析时为 0
func (p *StoreProvider) Load(ctx context.Context) (float64, error) {
	p.mu.RLock()
	if p.valid && p.now().Sub(p.fetchedAt) < p.refresh {
		v := p.cached
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	// 合并后的读取不随发起者的 ctx 取消，其它等待者仍能拿到结果
	ch := p.group.DoChan(p.key, func() (interface{}, error) {
		return p.fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

// fetch 读取存储中的负载值并写入缓存
func (p *StoreProvider) fetch(ctx context.Context) (float64, error) {
	raw, err := p.store.Get(ctx, p.key)
	if err != nil {
		return 0, err
	}

	value := 0.0
	if raw != nil {
		if parsed, perr := strconv.ParseFloat(string(raw), 64); perr == nil {
			value = Clamp(parsed)
		}
	}

	p.remember(value)
	return value, nil
}

// Publish 将负载值写入共享存储，供所有实例读取
func (p *StoreProvider) Publish(ctx context.Context, load float64) error {
	if err := validate(load); err != nil {
		return err
	}
	if err := p.store.Put(ctx, p.key, []byte(strconv.FormatFloat(load, 'f', -1, 64)), 0); err != nil {
		return err
	}
	p.remember(load)
	return nil
}

// remember 更新本地缓存
func (p *StoreProvider) remember(value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = value
	p.fetchedAt = p.now()
	p.valid = true
}

// Type 获取负载来源类型
func (p *StoreProvider) Type() string {
	return constants.LoadStore
}
