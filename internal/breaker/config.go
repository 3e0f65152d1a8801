package breaker

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"github.com/sony/gobreaker"
)

// DefaultSettings 返回默认的熔断器设置
func DefaultSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        constants.DefaultBreakerName,
		MaxRequests: constants.DefaultBreakerMaxRequests,
		Interval:    time.Duration(constants.DefaultBreakerInterval) * time.Millisecond,
		Timeout:     time.Duration(constants.DefaultBreakerCooldown) * time.Millisecond,
		ReadyToTrip: readyToTrip(constants.DefaultBreakerThreshold),
	}
}

// CreateFromConfig 从配置创建熔断器设置，状态变化写入日志和指标
// name: 熔断器名称
// cfg: 熔断器配置，可为空
// logger: 日志记录器，可为空
// collector: 指标收集器，可为空
func CreateFromConfig(name string, cfg *config.BreakerConfig, logger *logr.Logger, collector metrics.MetricsCollector) gobreaker.Settings {
	settings := DefaultSettings()
	if name != "" {
		settings.Name = name
	}

	if cfg != nil {
		// 设置半开状态下允许通过的最大请求数
		if cfg.MaxRequests > 0 {
			settings.MaxRequests = cfg.MaxRequests
		}

		// 设置闭合状态下统计周期重置间隔
		if cfg.Interval > 0 {
			settings.Interval = time.Duration(cfg.Interval) * time.Millisecond
		}

		// 设置开放状态持续时间
		if cfg.Cooldown > 0 {
			settings.Timeout = time.Duration(cfg.Cooldown) * time.Millisecond
		}

		// 设置熔断触发条件
		if cfg.Threshold > 0 {
			settings.ReadyToTrip = readyToTrip(cfg.Threshold)
		}
	}

	settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
		if logger != nil {
			logger.Info("Store circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
		if collector != nil {
			collector.RecordBreakerStateChange(name, from.String(), to.String())
			collector.RecordBreakerState(name, int(to))
		}
	}

	return settings
}

// readyToTrip 返回按失败比例触发熔断的判定函数
func readyToTrip(threshold float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < constants.DefaultBreakerMinRequests {
			return false
		}
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return failureRatio >= threshold
	}
}
