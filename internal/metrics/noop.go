package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// noopCollector 空操作指标收集器，用于禁用指标收集时的占位实现
type noopCollector struct {
	name string
}

// NewNoopCollector 创建新的空操作指标收集器实例
func NewNoopCollector() MetricsCollector {
	return &noopCollector{
		name: NoopType,
	}
}

// 网关 HTTP 指标收集方法（空实现）

func (c *noopCollector) RecordRequest(gatewayName, method, path string) {}

func (c *noopCollector) RecordResponse(gatewayName, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
}

func (c *noopCollector) RecordError(gatewayName, errorType string) {}

func (c *noopCollector) RecordInflight(gatewayName string, inflight int64) {}

// 限流决策指标收集方法（空实现）

func (c *noopCollector) RecordDecision(profile, strategy string, allowed bool) {}

func (c *noopCollector) RecordRejection(profile, strategy string) {}

func (c *noopCollector) RecordBypass(reason string) {}

func (c *noopCollector) RecordDegraded(policy string) {}

func (c *noopCollector) RecordAlert(profile, strategy string) {}

func (c *noopCollector) RecordSystemLoad(load float64) {}

// 存储指标收集方法（空实现）

func (c *noopCollector) RecordStoreOperation(operation, result string, duration time.Duration) {}

func (c *noopCollector) RecordBreakerState(name string, state int) {}

func (c *noopCollector) RecordBreakerStateChange(name, fromState, toState string) {}

// 工具方法

func (c *noopCollector) GetRegistry() *prometheus.Registry {
	// 返回空的注册器
	return prometheus.NewRegistry()
}

func (c *noopCollector) Name() string {
	return c.name
}

func (c *noopCollector) Close() error {
	return nil
}
