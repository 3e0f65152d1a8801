package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// MetricsCollector 代表指标收集器接口，定义统一的指标收集行为
type MetricsCollector interface {
	// 网关 HTTP 指标收集方法

	// RecordRequest 记录进入网关的 HTTP 请求
	// gatewayName: 网关名称
	// method: HTTP 方法
	// path: 路由路径
	RecordRequest(gatewayName, method, path string)

	// RecordResponse 记录网关返回的 HTTP 响应
	// gatewayName: 网关名称
	// method: HTTP 方法
	// path: 路由路径
	// statusCode: HTTP 状态码
	// duration: 请求处理时间
	// requestSize: 请求体大小（字节）
	// responseSize: 响应体大小（字节）
	RecordResponse(gatewayName, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64)

	// RecordError 记录网关错误
	// gatewayName: 网关名称
	// errorType: 错误类型
	RecordError(gatewayName, errorType string)

	// RecordInflight 记录在途请求数
	// gatewayName: 网关名称
	// inflight: 在途请求数
	RecordInflight(gatewayName string, inflight int64)

	// 限流决策指标收集方法

	// RecordDecision 记录一次限流决策
	// profile: 限流配置名称
	// strategy: 决策策略
	// allowed: 是否放行
	RecordDecision(profile, strategy string, allowed bool)

	// RecordRejection 记录限流拒绝
	// profile: 限流配置名称
	// strategy: 拒绝策略（sliding_window, token_bucket, adaptive, store_unavailable）
	RecordRejection(profile, strategy string)

	// RecordBypass 记录豁免请求
	// reason: 豁免原因
	RecordBypass(reason string)

	// RecordDegraded 记录存储故障时的降级决策
	// policy: 故障策略（open, closed）
	RecordDegraded(policy string)

	// RecordAlert 记录发出的限流告警
	// profile: 限流配置名称
	// strategy: 拒绝策略
	RecordAlert(profile, strategy string)

	// RecordSystemLoad 记录当前系统负载
	// load: 负载值，范围 [0, 1]
	RecordSystemLoad(load float64)

	// 存储指标收集方法

	// RecordStoreOperation 记录存储操作
	// operation: 操作名称（get, put, increment, update, ping）
	// result: 操作结果（success, failure, rejected）
	// duration: 操作耗时
	RecordStoreOperation(operation, result string, duration time.Duration)

	// RecordBreakerState 记录存储熔断器状态
	// name: 熔断器名称
	// state: 熔断器状态（0=关闭, 1=半开, 2=开启）
	RecordBreakerState(name string, state int)

	// RecordBreakerStateChange 记录存储熔断器状态变化
	// name: 熔断器名称
	// fromState: 原状态
	// toState: 新状态
	RecordBreakerStateChange(name, fromState, toState string)

	// 工具方法

	// GetRegistry 获取 Prometheus 注册器，用于与 orbit 框架集成
	GetRegistry() *prometheus.Registry

	// Name 获取收集器名称
	Name() string

	// Close 关闭收集器并清理资源
	Close() error
}

// Config 代表指标收集器配置
type Config struct {
	// Type 指标收集器类型（prometheus, noop）
	Type string `yaml:"type" json:"type"`

	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Namespace 指标命名空间前缀
	Namespace string `yaml:"namespace" json:"namespace"`

	// Subsystem 指标子系统名称
	Subsystem string `yaml:"subsystem" json:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:      NoopType,
		Enabled:   true,
		Namespace: constants.MetricsNamespace,
		Subsystem: "",
	}
}
