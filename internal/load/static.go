package load

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// Static 代表固定负载值，可在运行时通过 Publish 修改
type Static struct {
	bits atomic.Uint64
}

// NewStatic 创建固定负载来源
func NewStatic(value float64) *Static {
	s := &Static{}
	s.bits.Store(math.Float64bits(Clamp(value)))
	return s
}

// Load 返回当前负载值
func (s *Static) Load(ctx context.Context) (float64, error) {
	return math.Float64frombits(s.bits.Load()), nil
}

// Publish 替换负载值
func (s *Static) Publish(ctx context.Context, load float64) error {
	if err := validate(load); err != nil {
		return err
	}
	s.bits.Store(math.Float64bits(load))
	return nil
}

// Type 获取负载来源类型
func (s *Static) Type() string {
	return constants.LoadStatic
}
