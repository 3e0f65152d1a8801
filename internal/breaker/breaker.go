// Package breaker 为后端存储提供熔断保护，存储持续失败时快速失败
package breaker

import (
	"errors"

	"github.com/sony/gobreaker"
)

// CircuitBreaker 代表熔断器接口
type CircuitBreaker interface {
	// Do 执行受保护的操作，返回的错误计入熔断统计
	Do(op func() error) error

	// Name 获取熔断器名称
	Name() string

	// State 获取当前状态名称
	State() string
}

// storeBreaker 基于 sony/gobreaker 的熔断器
type storeBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker 创建新的熔断器实例
func NewCircuitBreaker(settings gobreaker.Settings) CircuitBreaker {
	return &storeBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *storeBreaker) Do(op func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op()
	})
	return err
}

func (b *storeBreaker) Name() string {
	return b.cb.Name()
}

func (b *storeBreaker) State() string {
	return b.cb.State().String()
}

// IsRejected 判断错误是否由熔断器拒绝产生（开放状态或半开状态请求过多）
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// StateClosed 闭合状态名称，未配置熔断器时使用
var StateClosed = gobreaker.StateClosed.String()
