// Package alert 负责投递限流拒绝事件
package alert

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"golang.org/x/time/rate"
)

// Event 代表一次限流拒绝
type Event struct {
	Identifier string    // 限流标识
	Profile    string    // 限流配置名称
	Strategy   string    // 拒绝策略
	Limit      int       // 当前上限
	Remaining  int       // 当前剩余
	RetryAfter int       // 建议重试秒数
	Method     string    // 请求方法
	Path       string    // 请求路径
	ClientIP   string    // 客户端地址
	At         time.Time // 发生时间
}

// Sink 代表告警投递接口，实现必须是非阻塞的
type Sink interface {
	// Notify 投递一条告警事件
	Notify(ctx context.Context, e Event)
}

// LogSink 代表写入日志的告警投递，按速率采样避免拒绝风暴刷屏
type LogSink struct {
	logger  *logr.Logger
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewLogSink 创建日志告警投递
// logger: 日志记录器
// perSecond: 每秒最多输出的告警条数，不大于 0 时不限制
// burst: 突发条数
func NewLogSink(logger *logr.Logger, perSecond float64, burst int) *LogSink {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &LogSink{
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Notify 输出告警日志，被采样丢弃的条数在下一条日志中报告
func (s *LogSink) Notify(ctx context.Context, e Event) {
	if !s.limiter.Allow() {
		s.dropped.Add(1)
		return
	}

	s.logger.Info("Rate limit exceeded",
		"identifier", e.Identifier,
		"profile", e.Profile,
		"strategy", e.Strategy,
		"limit", e.Limit,
		"remaining", e.Remaining,
		"retryAfter", e.RetryAfter,
		"method", e.Method,
		"path", e.Path,
		"clientIP", e.ClientIP,
		"suppressed", s.dropped.Swap(0),
	)
}

// Dropped 返回尚未报告的被丢弃条数
func (s *LogSink) Dropped() int64 {
	return s.dropped.Load()
}

// MetricsSink 代表计入指标的告警投递
type MetricsSink struct {
	collector metrics.MetricsCollector
}

// NewMetricsSink 创建指标告警投递
func NewMetricsSink(collector metrics.MetricsCollector) *MetricsSink {
	return &MetricsSink{collector: collector}
}

// Notify 记录告警指标
func (s *MetricsSink) Notify(ctx context.Context, e Event) {
	s.collector.RecordAlert(e.Profile, e.Strategy)
}

// MultiSink 代表依次投递到多个目标的告警投递
type MultiSink []Sink

// Notify 投递到所有目标
func (m MultiSink) Notify(ctx context.Context, e Event) {
	for _, sink := range m {
		sink.Notify(ctx, e)
	}
}

// NopSink 代表丢弃所有告警的投递
type NopSink struct{}

// Notify 不做任何事
func (NopSink) Notify(context.Context, Event) {}
