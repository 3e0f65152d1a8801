package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/breaker"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
)

// 存储操作结果标签
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultRejected = "rejected"
)

// GuardedStore 代表带超时和熔断保护的存储包装
// 每个操作独立设置超时，存储持续失败时熔断器打开并直接返回 ErrUnavailable
type GuardedStore struct {
	next      Store
	timeout   time.Duration
	cb        breaker.CircuitBreaker
	collector metrics.MetricsCollector
}

// NewGuardedStore 创建带保护的存储
// next: 被保护的存储
// timeout: 单个操作超时时间，不大于 0 时不设置超时
// cb: 熔断器，可为空
// collector: 指标收集器，可为空
func NewGuardedStore(next Store, timeout time.Duration, cb breaker.CircuitBreaker, collector metrics.MetricsCollector) *GuardedStore {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &GuardedStore{
		next:      next,
		timeout:   timeout,
		cb:        cb,
		collector: collector,
	}
}

// isInfraError 判断错误是否来自存储自身，只有这类错误计入熔断统计
func isInfraError(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrClosed)
}

// do 在超时和熔断保护下执行操作
func (g *GuardedStore) do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	start := time.Now()

	run := func() error {
		opCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			opCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return op(opCtx)
	}

	var opErr error
	if g.cb == nil {
		opErr = run()
	} else {
		err := g.cb.Do(func() error {
			opErr = run()
			if isInfraError(opErr) {
				return opErr
			}
			// 业务错误（例如并发冲突）不影响熔断状态
			return nil
		})
		if breaker.IsRejected(err) {
			g.collector.RecordStoreOperation(operation, resultRejected, time.Since(start))
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if opErr != nil {
		g.collector.RecordStoreOperation(operation, resultFailure, time.Since(start))
		if errors.Is(opErr, context.DeadlineExceeded) && !errors.Is(opErr, ErrUnavailable) {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, opErr)
		}
		return opErr
	}

	g.collector.RecordStoreOperation(operation, resultSuccess, time.Since(start))
	return nil
}

// Get 读取键值
func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := g.do(ctx, "get", func(ctx context.Context) error {
		var err error
		value, err = g.next.Get(ctx, key)
		return err
	})
	return value, err
}

// Put 写入键值
func (g *GuardedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.do(ctx, "put", func(ctx context.Context) error {
		return g.next.Put(ctx, key, value, ttl)
	})
}

// Increment 原子自增计数器
func (g *GuardedStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := g.do(ctx, "increment", func(ctx context.Context) error {
		var err error
		n, err = g.next.Increment(ctx, key, ttl)
		return err
	})
	return n, err
}

// Update 原子读改写
func (g *GuardedStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	return g.do(ctx, "update", func(ctx context.Context) error {
		return g.next.Update(ctx, key, ttl, fn)
	})
}

// Ping 检查存储是否可用，不经过熔断器，便于健康检查反映真实状态
func (g *GuardedStore) Ping(ctx context.Context) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.next.Ping(ctx)
}

// Close 关闭被保护的存储
func (g *GuardedStore) Close() error {
	return g.next.Close()
}

// Type 获取被保护存储的类型
func (g *GuardedStore) Type() string {
	return g.next.Type()
}

// BreakerState 获取熔断器当前状态
func (g *GuardedStore) BreakerState() string {
	if g.cb == nil {
		return breaker.StateClosed
	}
	return g.cb.State()
}
