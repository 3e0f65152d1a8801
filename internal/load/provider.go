// Package load 提供自适应限流使用的系统负载来源
package load

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// 负载来源相关错误定义
var (
	// ErrUnknownType 未知负载来源类型
	ErrUnknownType = errors.New(constants.ErrMsgUnknownLoadType)
	// ErrNotPublishable 负载来源不接受外部发布
	ErrNotPublishable = errors.New(constants.ErrMsgLoadNotPublishable)
	// ErrInvalidLoad 负载值越界
	ErrInvalidLoad = errors.New(constants.ErrMsgInvalidLoad)
)

// Provider 代表系统负载来源，负载值范围 [0, 1]
type Provider interface {
	// Load 返回当前系统负载
	Load(ctx context.Context) (float64, error)

	// Type 获取负载来源类型
	Type() string
}

// Publisher 代表接受外部发布负载值的负载来源
type Publisher interface {
	// Publish 发布新的系统负载
	Publish(ctx context.Context, load float64) error
}

// Clamp 将负载值限制在 [0, 1] 区间，非法数值视为 0
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// validate 检查待发布的负载值
func validate(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidLoad, v)
	}
	return nil
}

// Factory 代表负载来源工厂
type Factory struct {
	store     store.Store
	keyPrefix string
}

// NewFactory 创建负载来源工厂
// s: 存储实例，store 类型的负载来源需要
// keyPrefix: 存储键前缀
func NewFactory(s store.Store, keyPrefix string) *Factory {
	return &Factory{store: s, keyPrefix: keyPrefix}
}

// Create 根据配置创建负载来源
func (f *Factory) Create(cfg *config.LoadConfig) (Provider, error) {
	switch cfg.Type {
	case constants.LoadStatic:
		return NewStatic(cfg.Value), nil

	case constants.LoadStore, "":
		if f.store == nil {
			return nil, store.ErrNilStore
		}
		return NewStoreProvider(f.store, f.keyPrefix+constants.KeySystemLoad,
			time.Duration(cfg.Refresh)*time.Millisecond), nil

	case constants.LoadInflight:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = constants.DefaultInflightCapacity
		}
		return NewInflight(capacity), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
