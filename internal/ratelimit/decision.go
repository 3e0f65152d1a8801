// Package ratelimit 实现多策略自适应限流引擎
//
// 每个请求依次经过滑动窗口、令牌桶和自适应三个策略，第一个拒绝的策略短路求值。
// 所有状态保存在注入的 store.Store 中，读改写均通过 Store.Update 原子完成。
package ratelimit

import (
	"context"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/profile"
)

// Decision 代表单个策略或整个引擎的限流决策
type Decision struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"` // 单位：秒
	Strategy   string    `json:"strategy,omitempty"`
}

// Subject 代表一次限流检查的对象
type Subject struct {
	Identifier string                 // 限流标识
	Profile    profile.LimiterProfile // 生效的限流配置
	Request    *identity.Request      // 请求描述
}

// Strategy 代表单个限流策略
type Strategy interface {
	// Name 返回策略名称，用于标记拒绝决策
	Name() string

	// Decide 对限流对象做出决策，只有存储故障时返回错误
	Decide(ctx context.Context, subject Subject) (Decision, error)
}

// Clock 代表时间来源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 返回系统时钟
func SystemClock() Clock {
	return systemClock{}
}

// ClockFunc 将普通函数适配为 Clock
type ClockFunc func() time.Time

// Now 返回当前时间
func (f ClockFunc) Now() time.Time { return f() }
