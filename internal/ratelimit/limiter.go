package ratelimit

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/alert"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/load"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// ErrNilRequest 空请求描述
var ErrNilRequest = errors.New(constants.ErrMsgNilRequest)

// Outcome 代表一次完整求值的结果
type Outcome struct {
	Decision   Decision               // 最终决策
	Base       Decision               // 基础滑动窗口决策，用于响应头
	Identifier string                 // 限流标识，绕过时可能为空
	Profile    profile.LimiterProfile // 生效的限流配置
	Bypassed   bool                   // 请求被豁免
	Degraded   bool                   // 存储故障，决策来自故障策略
}

// Usage 代表标识的使用情况快照
type Usage struct {
	Identifier     string          `json:"identifier"`
	Analytics      *UsageAnalytics `json:"analytics"`
	Adaptive       *AdaptiveState  `json:"adaptive"`
	EffectiveLimit int             `json:"effective_limit"`
	Profile        string          `json:"profile"`
}

// Limiter 代表决策编排器，按固定顺序执行滑动窗口、令牌桶和自适应策略
type Limiter struct {
	registry   *profile.Registry
	resolver   *identity.Resolver
	bypass     *identity.Bypass
	strategies []Strategy
	adaptive   *Adaptive
	recorder   *Recorder
	logger     *logr.Logger
	collector  metrics.MetricsCollector
	alerts     alert.Sink
	clock      Clock
	name       string

	failurePolicy string
	failRetry     int
}

// options 代表限流器的可选依赖
type options struct {
	name          string
	keyPrefix     string
	clock         Clock
	logger        *logr.Logger
	collector     metrics.MetricsCollector
	alerts        alert.Sink
	load          load.Provider
	resolver      *identity.Resolver
	bypass        *identity.Bypass
	adaptive      AdaptiveParams
	recorder      RecorderParams
	failurePolicy string
	failRetry     int
	hourlyQuota   bool
}

// Option 代表限流器配置选项
type Option func(*options)

// WithName 设置限流器名称，用于错误指标
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithKeyPrefix 设置存储键前缀
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

// WithClock 设置时间来源
func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger 设置日志记录器
func WithLogger(logger *logr.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 设置指标收集器
func WithMetrics(collector metrics.MetricsCollector) Option {
	return func(o *options) { o.collector = collector }
}

// WithAlertSink 设置拒绝告警投递
func WithAlertSink(sink alert.Sink) Option {
	return func(o *options) { o.alerts = sink }
}

// WithLoadProvider 设置系统负载来源
func WithLoadProvider(provider load.Provider) Option {
	return func(o *options) { o.load = provider }
}

// WithResolver 设置标识解析器
func WithResolver(resolver *identity.Resolver) Option {
	return func(o *options) { o.resolver = resolver }
}

// WithBypass 设置豁免判定
func WithBypass(bypass *identity.Bypass) Option {
	return func(o *options) { o.bypass = bypass }
}

// WithAdaptiveParams 设置自适应参数
func WithAdaptiveParams(params AdaptiveParams) Option {
	return func(o *options) { o.adaptive = params }
}

// WithRecorderParams 设置使用记录参数
func WithRecorderParams(params RecorderParams) Option {
	return func(o *options) { o.recorder = params }
}

// WithFailurePolicy 设置存储故障策略
// policy: open 放行，closed 拒绝
// retryAfter: closed 策略返回的重试秒数
func WithFailurePolicy(policy string, retryAfter int) Option {
	return func(o *options) {
		o.failurePolicy = policy
		o.failRetry = retryAfter
	}
}

// WithHourlyQuota 对 API Key 调用方启用限流配置中的每小时上限
func WithHourlyQuota(enabled bool) Option {
	return func(o *options) { o.hourlyQuota = enabled }
}

// NewLimiter 创建限流器
// registry: 限流配置注册表
// s: 状态存储
func NewLimiter(registry *profile.Registry, s store.Store, opts ...Option) (*Limiter, error) {
	if s == nil {
		return nil, store.ErrNilStore
	}

	discard := logr.Discard()
	o := options{
		name:          constants.DefaultGatewayName,
		clock:         SystemClock(),
		logger:        &discard,
		collector:     metrics.NewNoopCollector(),
		alerts:        alert.NopSink{},
		resolver:      identity.NewResolver(nil),
		bypass:        identity.NewBypass(nil, nil),
		adaptive:      DefaultAdaptiveParams(),
		recorder:      DefaultRecorderParams(),
		failurePolicy: constants.FailureOpen,
		failRetry:     constants.DefaultFailClosedRetryAfter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	window := NewSlidingWindow(s, o.keyPrefix, o.clock)
	window.hourly = o.hourlyQuota
	bucket := NewTokenBucket(s, o.keyPrefix, o.clock)
	adaptive := NewAdaptive(window, o.load, o.adaptive, o.logger)

	return &Limiter{
		registry:      registry,
		resolver:      o.resolver,
		bypass:        o.bypass,
		strategies:    []Strategy{window, bucket, adaptive},
		adaptive:      adaptive,
		recorder:      NewRecorder(s, o.keyPrefix, o.clock, o.recorder),
		logger:        o.logger,
		collector:     o.collector,
		alerts:        o.alerts,
		clock:         o.clock,
		name:          o.name,
		failurePolicy: o.failurePolicy,
		failRetry:     o.failRetry,
	}, nil
}

// Evaluate 对请求求值，从不返回错误：存储故障按故障策略转换为决策
// req: 请求描述
// profileName: 路由选择的限流配置名称，未知名称回退到默认配置
func (l *Limiter) Evaluate(ctx context.Context, req *identity.Request, profileName string) Outcome {
	p := l.registry.Resolve(profileName)
	outcome := Outcome{Profile: p}

	if req == nil {
		l.logger.Error(ErrNilRequest, "Rate limit evaluation skipped", "profile", p.Name)
		return l.degrade(ctx, outcome, req)
	}

	if l.bypass.Exempt(req) {
		outcome.Bypassed = true
		outcome.Decision = Decision{Allowed: true, Limit: p.RequestsPerMinute, Remaining: p.RequestsPerMinute}
		outcome.Base = outcome.Decision
		l.collector.RecordBypass(l.bypassReason(req))
		return outcome
	}

	outcome.Identifier = l.resolver.Identify(req)
	subject := Subject{Identifier: outcome.Identifier, Profile: p, Request: req}

	for i, strategy := range l.strategies {
		d, err := strategy.Decide(ctx, subject)
		if err != nil {
			l.logger.Error(err, "Rate limit strategy failed",
				"strategy", strategy.Name(),
				"identifier", outcome.Identifier,
				"profile", p.Name,
				"policy", l.failurePolicy)
			return l.degrade(ctx, outcome, req)
		}
		if i == 0 {
			outcome.Base = d
		}
		if !d.Allowed {
			d.Strategy = strategy.Name()
			outcome.Decision = d
			l.reject(ctx, outcome, req)
			return outcome
		}
	}

	outcome.Decision = outcome.Base
	outcome.Decision.Strategy = constants.StrategyAdvanced
	l.collector.RecordDecision(p.Name, constants.StrategyAdvanced, true)
	return outcome
}

// Record 在下游响应后更新标识的使用统计，失败只记录日志
func (l *Limiter) Record(ctx context.Context, outcome Outcome, status int) {
	if outcome.Bypassed || outcome.Identifier == "" || !outcome.Decision.Allowed {
		return
	}
	if err := l.recorder.Record(ctx, outcome.Identifier, outcome.Profile.Name, status); err != nil {
		l.logger.Error(err, "Failed to record request usage", "identifier", outcome.Identifier, "status", status)
		l.collector.RecordError(l.name, constants.ErrorTypeRecord)
	}
}

// Usage 返回标识的使用统计和自适应状态
// profileName: 计算有效上限使用的限流配置名称
func (l *Limiter) Usage(ctx context.Context, identifier, profileName string) (Usage, error) {
	p := l.registry.Resolve(profileName)
	usage := Usage{Identifier: identifier, Profile: p.Name}

	analytics, ok, err := l.recorder.Analytics(ctx, identifier)
	if err != nil {
		return Usage{}, err
	}
	if ok {
		usage.Analytics = &analytics
	}

	state, err := l.adaptive.State(ctx, identifier)
	if err != nil {
		return Usage{}, err
	}
	if state.Samples > 0 {
		usage.Adaptive = &state
	}

	limit, err := l.adaptive.EffectiveLimit(ctx, identifier, p)
	if err != nil {
		return Usage{}, err
	}
	usage.EffectiveLimit = limit
	return usage, nil
}

// Registry 返回限流配置注册表
func (l *Limiter) Registry() *profile.Registry {
	return l.registry
}

// degrade 按故障策略生成决策
func (l *Limiter) degrade(ctx context.Context, outcome Outcome, req *identity.Request) Outcome {
	p := outcome.Profile
	outcome.Degraded = true
	l.collector.RecordDegraded(l.failurePolicy)

	if l.failurePolicy == constants.FailureClosed {
		outcome.Decision = Decision{
			Allowed:    false,
			Limit:      p.RequestsPerMinute,
			Remaining:  0,
			RetryAfter: l.failRetry,
			Strategy:   constants.StrategyStoreUnavailable,
		}
		outcome.Base = Decision{Limit: p.RequestsPerMinute}
		l.reject(ctx, outcome, req)
		return outcome
	}

	outcome.Decision = Decision{
		Allowed:   true,
		Limit:     p.RequestsPerMinute,
		Remaining: p.RequestsPerMinute,
		Strategy:  constants.StrategyDegraded,
	}
	outcome.Base = outcome.Decision
	l.collector.RecordDecision(p.Name, constants.StrategyDegraded, true)
	return outcome
}

// reject 记录拒绝指标并投递告警
func (l *Limiter) reject(ctx context.Context, outcome Outcome, req *identity.Request) {
	d := outcome.Decision
	l.collector.RecordDecision(outcome.Profile.Name, d.Strategy, false)
	l.collector.RecordRejection(outcome.Profile.Name, d.Strategy)

	event := alert.Event{
		Identifier: outcome.Identifier,
		Profile:    outcome.Profile.Name,
		Strategy:   d.Strategy,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
		At:         l.clock.Now(),
	}
	if req != nil {
		event.Method = req.Method
		event.Path = req.Path
		event.ClientIP = req.ClientIP
	}
	l.alerts.Notify(ctx, event)
}

// bypassReason 返回豁免原因
func (l *Limiter) bypassReason(req *identity.Request) string {
	if l.bypass.ExemptRole(req.Role) {
		return "role"
	}
	return "path"
}
