package load

import (
	"context"
	"sync/atomic"

	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// Inflight 代表根据网关在途请求数估算的负载，负载 = 在途请求数 / 容量
type Inflight struct {
	current  atomic.Int64
	capacity int64
}

// NewInflight 创建在途请求负载来源
// capacity: 视为满载的在途请求数
func NewInflight(capacity int64) *Inflight {
	if capacity <= 0 {
		capacity = constants.DefaultInflightCapacity
	}
	return &Inflight{capacity: capacity}
}

// Acquire 登记一个在途请求并返回当前在途数
func (i *Inflight) Acquire() int64 {
	return i.current.Add(1)
}

// Release 注销一个在途请求并返回当前在途数
func (i *Inflight) Release() int64 {
	return i.current.Add(-1)
}

// Current 返回当前在途请求数
func (i *Inflight) Current() int64 {
	return i.current.Load()
}

// Load 返回当前负载值
func (i *Inflight) Load(ctx context.Context) (float64, error) {
	return Clamp(float64(i.current.Load()) / float64(i.capacity)), nil
}

// Type 获取负载来源类型
func (i *Inflight) Type() string {
	return constants.LoadInflight
}
