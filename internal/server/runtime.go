package server

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/alert"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/load"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/ratelimit"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// Runtime 代表网关与管理服务共享的运行时组件
type Runtime struct {
	Config    *config.Config
	Collector metrics.MetricsCollector
	Store     *store.GuardedStore
	Load      load.Provider
	Inflight  *load.Inflight // 在途请求计数，负载来源为 inflight 时与 Load 为同一实例
	Registry  *profile.Registry
	Routes    *profile.RouteTable
	Extractor *identity.Extractor
	Limiter   *ratelimit.Limiter
	Alerts    *alert.LogSink
}

// NewRuntime 根据配置装配指标、存储、负载来源和限流器
// cfg: 已补全默认值并通过校验的配置
// logger: 日志记录器
func NewRuntime(cfg *config.Config, logger *logr.Logger) (*Runtime, error) {
	collector, err := metrics.GetGlobalRegistry().GetOrCreateSharedCollector(constants.MetricsCollectorGlobal, &metrics.Config{
		Type:      metrics.PrometheusType,
		Enabled:   true,
		Namespace: constants.MetricsNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create global metrics collector: %w", err)
	}

	registry, err := profile.NewRegistryFromConfig(&cfg.Limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile registry: %w", err)
	}

	guarded, err := store.NewFactory(logger, collector).Create(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	provider, err := load.NewFactory(guarded, cfg.Store.KeyPrefix).Create(&cfg.Limiter.Load)
	if err != nil {
		_ = guarded.Close()
		return nil, fmt.Errorf("failed to create load provider: %w", err)
	}

	inflight, ok := provider.(*load.Inflight)
	if !ok {
		inflight = load.NewInflight(constants.DefaultInflightCapacity)
	}

	logSink := alert.NewLogSink(logger, cfg.Alerts.LogPerSecond, cfg.Alerts.LogBurst)

	limiter, err := ratelimit.NewLimiter(registry, guarded,
		ratelimit.WithName(cfg.Gateway.Name),
		ratelimit.WithKeyPrefix(cfg.Store.KeyPrefix),
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(collector),
		ratelimit.WithAlertSink(alert.MultiSink{logSink, alert.NewMetricsSink(collector)}),
		ratelimit.WithLoadProvider(provider),
		ratelimit.WithResolver(identity.NewResolver(cfg.Identity.FingerprintHeaders)),
		ratelimit.WithBypass(identity.NewBypass(cfg.Limiter.Bypass.Roles, cfg.Limiter.Bypass.Paths)),
		ratelimit.WithAdaptiveParams(ratelimit.AdaptiveParamsFromConfig(&cfg.Limiter.Adaptive)),
		ratelimit.WithRecorderParams(ratelimit.RecorderParamsFromConfig(&cfg.Limiter.Adaptive)),
		ratelimit.WithFailurePolicy(cfg.Store.FailurePolicy, cfg.Store.FailClosedRetryAfter),
		ratelimit.WithHourlyQuota(cfg.Limiter.HourlyQuota),
	)
	if err != nil {
		_ = guarded.Close()
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}

	logger.Info("Runtime initialized",
		"store", guarded.Type(),
		"load", provider.Type(),
		"failurePolicy", cfg.Store.FailurePolicy,
		"profiles", registry.Names())

	return &Runtime{
		Config:    cfg,
		Collector: collector,
		Store:     guarded,
		Load:      provider,
		Inflight:  inflight,
		Registry:  registry,
		Routes:    profile.NewRouteTable(registry.Default(), cfg.Limiter.Routes),
		Extractor: identity.NewExtractor(&cfg.Identity),
		Limiter:   limiter,
		Alerts:    logSink,
	}, nil
}

// Close 释放运行时持有的存储连接
func (r *Runtime) Close() error {
	return r.Store.Close()
}
