package store

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/breaker"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
)

// StoreFactory 代表存储工厂接口
type StoreFactory interface {
	// Create 根据配置创建带超时和熔断保护的存储
	Create(cfg *config.StoreConfig) (*GuardedStore, error)
}

// storeFactory 代表存储工厂实现
type storeFactory struct {
	logger    *logr.Logger
	collector metrics.MetricsCollector
}

// NewFactory 创建新的存储工厂实例
// logger: 日志记录器，用于输出熔断状态变化
// collector: 指标收集器，可为空
func NewFactory(logger *logr.Logger, collector metrics.MetricsCollector) StoreFactory {
	return &storeFactory{logger: logger, collector: collector}
}

// Create 根据配置创建存储
func (f *storeFactory) Create(cfg *config.StoreConfig) (*GuardedStore, error) {
	base, err := f.createBase(cfg)
	if err != nil {
		return nil, err
	}

	settings := breaker.CreateFromConfig(constants.DefaultBreakerName, cfg.Breaker, f.logger, f.collector)
	cb := breaker.NewCircuitBreaker(settings)

	return NewGuardedStore(base, time.Duration(cfg.Timeout)*time.Millisecond, cb, f.collector), nil
}

// createBase 创建未加保护的底层存储
func (f *storeFactory) createBase(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case constants.StoreMemory, "":
		opts := []MemoryOption{}
		if cfg.Memory != nil {
			opts = append(opts,
				WithShards(cfg.Memory.Shards),
				WithCleanupInterval(time.Duration(cfg.Memory.CleanupInterval)*time.Millisecond),
			)
		}
		return NewMemoryStore(opts...), nil

	case constants.StoreRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("store type %s requires a redis section", cfg.Type)
		}
		return NewRedisStore(NewRedisClient(cfg.Redis)), nil

	case constants.StoreSharded:
		if len(cfg.Shards) == 0 {
			return nil, ErrEmptyShards
		}
		shards := make([]Shard, 0, len(cfg.Shards))
		for i := range cfg.Shards {
			shards = append(shards, Shard{
				Name:  cfg.Shards[i].Name,
				Store: NewRedisStore(NewRedisClient(&cfg.Shards[i].Redis)),
			})
		}
		return NewShardedStore(shards...)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
