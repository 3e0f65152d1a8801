package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// 注册器相关错误定义
var (
	ErrEmptyCollectorName = errors.New("collector name cannot be empty")
	ErrNilConfig          = errors.New("metrics config cannot be nil")
	ErrInvalidConfig      = errors.New("invalid metrics config")
	ErrInvalidMetricsType = errors.New("invalid metrics type")
)

// NoopType 空操作收集器类型
const NoopType = "noop"

// MetricsRegistry 代表共享的 Prometheus 注册器
// 网关、存储熔断器和管理服务按名称取得同一个收集器，/metrics 只暴露这一个注册器
type MetricsRegistry struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	collectors map[string]MetricsCollector
}

var (
	globalRegistry *MetricsRegistry
	registryOnce   sync.Once
)

// GetGlobalRegistry 获取进程级注册器
func GetGlobalRegistry() *MetricsRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewMetricsRegistry()
	})
	return globalRegistry
}

// NewMetricsRegistry 创建独立的注册器，测试中使用
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		registry:   prometheus.NewRegistry(),
		collectors: make(map[string]MetricsCollector),
	}
}

// GetOrCreateSharedCollector 返回已存在的收集器，不存在时按配置创建
// 同名收集器只创建一次，之后的配置参数被忽略
// name: 收集器名称
// config: 收集器配置，noop 类型或未启用时创建空操作收集器
func (r *MetricsRegistry) GetOrCreateSharedCollector(name string, config *Config) (MetricsCollector, error) {
	if name == "" {
		return nil, ErrEmptyCollectorName
	}
	if config == nil {
		return nil, ErrNilConfig
	}

	if collector, ok := r.GetCollector(name); ok {
		return collector, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if collector, ok := r.collectors[name]; ok {
		return collector, nil
	}

	collector, err := newCollector(config, r.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create collector %s: %w", name, err)
	}
	r.collectors[name] = collector
	return collector, nil
}

// GetCollector 获取指定名称的收集器
func (r *MetricsRegistry) GetCollector(name string) (MetricsCollector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collector, ok := r.collectors[name]
	return collector, ok
}

// GetRegistry 获取 Prometheus 注册器
func (r *MetricsRegistry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Gather 收集共享注册器中的全部指标
func (r *MetricsRegistry) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// newCollector 按配置创建挂在指定注册器上的收集器
func newCollector(config *Config, registry *prometheus.Registry) (MetricsCollector, error) {
	if !config.Enabled {
		return NewNoopCollector(), nil
	}

	switch config.Type {
	case NoopType:
		return NewNoopCollector(), nil

	case PrometheusType:
		if !validName(config.Namespace) || (config.Subsystem != "" && !validName(config.Subsystem)) {
			return nil, fmt.Errorf("%w: namespace %q subsystem %q", ErrInvalidConfig, config.Namespace, config.Subsystem)
		}
		return NewPrometheusCollectorWithRegistry(config, registry)

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricsType, config.Type)
	}
}

// validName 检查命名空间或子系统只由字母、数字和下划线组成
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
