package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusType Prometheus 收集器类型
const PrometheusType = "prometheus"

// commonStatusCodes 常见状态码的字符串缓存，避免热路径上的格式化开销
var commonStatusCodes = map[int]string{
	200: "200", 201: "201", 204: "204",
	301: "301", 302: "302", 304: "304",
	400: "400", 401: "401", 403: "403", 404: "404", 429: "429",
	500: "500", 502: "502", 503: "503", 504: "504",
}

// formatStatusCode 将状态码转换为标签值
func formatStatusCode(code int) string {
	if s, ok := commonStatusCodes[code]; ok {
		return s
	}
	return strconv.Itoa(code)
}

// prometheusCollector 基于 Prometheus 的指标收集器实现
type prometheusCollector struct {
	name     string
	registry *prometheus.Registry
	config   *Config
	mu       sync.RWMutex

	// 网关 HTTP 指标
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpRequestSizeBytes  *prometheus.HistogramVec
	httpResponseSizeBytes *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	inflightRequests      *prometheus.GaugeVec

	// 限流决策指标
	decisionsTotal           *prometheus.CounterVec
	rateLimitRejectionsTotal *prometheus.CounterVec
	bypassTotal              *prometheus.CounterVec
	degradedTotal            *prometheus.CounterVec
	alertsTotal              *prometheus.CounterVec
	systemLoad               prometheus.Gauge

	// 存储指标
	storeOperationsTotal     *prometheus.CounterVec
	storeOperationDuration   *prometheus.HistogramVec
	breakerState             *prometheus.GaugeVec
	breakerStateChangesTotal *prometheus.CounterVec
}

// NewPrometheusCollectorWithRegistry 创建使用指定注册器的 Prometheus 指标收集器实例
func NewPrometheusCollectorWithRegistry(config *Config, registry *prometheus.Registry) (MetricsCollector, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	collector := &prometheusCollector{
		name:     PrometheusType,
		registry: registry,
		config:   config,
	}

	if err := collector.initMetrics(); err != nil {
		return nil, err
	}

	return collector, nil
}

// initMetrics 初始化所有 Prometheus 指标
func (c *prometheusCollector) initMetrics() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 构建指标名称前缀
	prefix := c.config.Namespace
	if c.config.Subsystem != "" {
		prefix = c.config.Namespace + "_" + c.config.Subsystem
	}

	// 网关 HTTP 指标
	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"gateway", "method", "path", "status_code"},
	)

	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"gateway", "method", "path"},
	)

	c.httpRequestSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100B to ~100MB
		},
		[]string{"gateway", "method", "path"},
	)

	c.httpResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 100B to ~100MB
		},
		[]string{"gateway", "method", "path", "status_code"},
	)

	c.httpErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_errors_total",
			Help: "Total number of gateway errors",
		},
		[]string{"gateway", "error_type"},
	)

	c.inflightRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_inflight_requests",
			Help: "Number of requests currently being served",
		},
		[]string{"gateway"},
	)

	// 限流决策指标
	c.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_decisions_total",
			Help: "Total number of rate limit decisions",
		},
		[]string{"profile", "strategy", "result"},
	)

	c.rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_rejections_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"profile", "strategy"},
	)

	c.bypassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_bypass_total",
			Help: "Total number of requests exempt from rate limiting",
		},
		[]string{"reason"},
	)

	c.degradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_degraded_total",
			Help: "Total number of decisions taken while the store was unavailable",
		},
		[]string{"policy"},
	)

	c.alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_alerts_total",
			Help: "Total number of rate limit alerts",
		},
		[]string{"profile", "strategy"},
	)

	c.systemLoad = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_system_load",
			Help: "System load observed by the adaptive limiter (0..1)",
		},
	)

	// 存储指标
	c.storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_store_operations_total",
			Help: "Total number of backing store operations",
		},
		[]string{"operation", "result"},
	)

	c.storeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_store_operation_duration_seconds",
			Help:    "Backing store operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"operation"},
	)

	c.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	c.breakerStateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_store_breaker_state_changes_total",
			Help: "Total number of store circuit breaker state changes",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// 注册所有指标到注册器
	collectors := []prometheus.Collector{
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.httpRequestSizeBytes,
		c.httpResponseSizeBytes,
		c.httpErrorsTotal,
		c.inflightRequests,
		c.decisionsTotal,
		c.rateLimitRejectionsTotal,
		c.bypassTotal,
		c.degradedTotal,
		c.alertsTotal,
		c.systemLoad,
		c.storeOperationsTotal,
		c.storeOperationDuration,
		c.breakerState,
		c.breakerStateChangesTotal,
	}

	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// 网关 HTTP 指标收集方法实现

// RecordRequest 记录 HTTP 请求
func (c *prometheusCollector) RecordRequest(gatewayName, method, path string) {
	// 请求计数将在 RecordResponse 中统一处理
}

// RecordResponse 记录 HTTP 响应
func (c *prometheusCollector) RecordResponse(gatewayName, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusCodeStr := formatStatusCode(statusCode)

	c.httpRequestsTotal.WithLabelValues(gatewayName, method, path, statusCodeStr).Inc()
	c.httpRequestDuration.WithLabelValues(gatewayName, method, path).Observe(duration.Seconds())

	if requestSize > 0 {
		c.httpRequestSizeBytes.WithLabelValues(gatewayName, method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		c.httpResponseSizeBytes.WithLabelValues(gatewayName, method, path, statusCodeStr).Observe(float64(responseSize))
	}
}

// RecordError 记录网关错误
func (c *prometheusCollector) RecordError(gatewayName, errorType string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.httpErrorsTotal.WithLabelValues(gatewayName, errorType).Inc()
}

// RecordInflight 记录在途请求数
func (c *prometheusCollector) RecordInflight(gatewayName string, inflight int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.inflightRequests.WithLabelValues(gatewayName).Set(float64(inflight))
}

// 限流决策指标收集方法实现

// RecordDecision 记录一次限流决策
func (c *prometheusCollector) RecordDecision(profile, strategy string, allowed bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := "rejected"
	if allowed {
		result = "allowed"
	}
	c.decisionsTotal.WithLabelValues(profile, strategy, result).Inc()
}

// RecordRejection 记录限流拒绝
func (c *prometheusCollector) RecordRejection(profile, strategy string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.rateLimitRejectionsTotal.WithLabelValues(profile, strategy).Inc()
}

// RecordBypass 记录豁免请求
func (c *prometheusCollector) RecordBypass(reason string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.bypassTotal.WithLabelValues(reason).Inc()
}

// RecordDegraded 记录降级决策
func (c *prometheusCollector) RecordDegraded(policy string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.degradedTotal.WithLabelValues(policy).Inc()
}

// RecordAlert 记录限流告警
func (c *prometheusCollector) RecordAlert(profile, strategy string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.alertsTotal.WithLabelValues(profile, strategy).Inc()
}

// RecordSystemLoad 记录系统负载
func (c *prometheusCollector) RecordSystemLoad(load float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.systemLoad.Set(load)
}

// 存储指标收集方法实现

// RecordStoreOperation 记录存储操作
func (c *prometheusCollector) RecordStoreOperation(operation, result string, duration time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.storeOperationsTotal.WithLabelValues(operation, result).Inc()
	c.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBreakerState 记录熔断器状态
func (c *prometheusCollector) RecordBreakerState(name string, state int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerStateChange 记录熔断器状态变化
func (c *prometheusCollector) RecordBreakerStateChange(name, fromState, toState string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.breakerStateChangesTotal.WithLabelValues(name, fromState, toState).Inc()
}

// 工具方法实现

// GetRegistry 获取 Prometheus 注册器
func (c *prometheusCollector) GetRegistry() *prometheus.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.registry
}

// Name 获取收集器名称
func (c *prometheusCollector) Name() string {
	return c.name
}

// Close 关闭收集器并清理资源
func (c *prometheusCollector) Close() error {
	return nil
}
