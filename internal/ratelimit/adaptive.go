package ratelimit

import (
	"context"
	"math"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/load"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// AdaptiveParams 代表自适应乘数的阈值与惩罚系数
type AdaptiveParams struct {
	ErrorRateThreshold float64 // 错误率超过该值时施加 ErrorRatePenalty
	ErrorRatePenalty   float64
	LoadThreshold      float64 // 系统负载超过该值时施加 LoadPenalty
	LoadPenalty        float64
	SuspiciousPenalty  float64 // 可疑行为时施加
}

// DefaultAdaptiveParams 返回默认自适应参数
func DefaultAdaptiveParams() AdaptiveParams {
	return AdaptiveParams{
		ErrorRateThreshold: constants.DefaultErrorRateThreshold,
		ErrorRatePenalty:   constants.DefaultErrorRatePenalty,
		LoadThreshold:      constants.DefaultLoadThreshold,
		LoadPenalty:        constants.DefaultLoadPenalty,
		SuspiciousPenalty:  constants.DefaultSuspiciousPenalty,
	}
}

// AdaptiveParamsFromConfig 根据配置创建自适应参数
func AdaptiveParamsFromConfig(cfg *config.AdaptiveConfig) AdaptiveParams {
	return AdaptiveParams{
		ErrorRateThreshold: cfg.ErrorRateThreshold,
		ErrorRatePenalty:   cfg.ErrorRatePenalty,
		LoadThreshold:      cfg.LoadThreshold,
		LoadPenalty:        cfg.LoadPenalty,
		SuspiciousPenalty:  cfg.SuspiciousPenalty,
	}
}

// Multiplier 计算限流乘数，三个条件相互独立并相乘
func (p AdaptiveParams) Multiplier(state AdaptiveState, systemLoad float64) float64 {
	m := 1.0
	if state.ErrorRate > p.ErrorRateThreshold {
		m *= p.ErrorRatePenalty
	}
	if systemLoad > p.LoadThreshold {
		m *= p.LoadPenalty
	}
	if state.SuspiciousActivity {
		m *= p.SuspiciousPenalty
	}
	return m
}

// Limit 计算自适应上限 floor(requestsPerMinute * multiplier)
func (p AdaptiveParams) Limit(requestsPerMinute int, state AdaptiveState, systemLoad float64) int {
	return int(math.Floor(float64(requestsPerMinute) * p.Multiplier(state, systemLoad)))
}

// Adaptive 代表自适应策略，根据行为状态和系统负载降低上限后重新执行滑动窗口
type Adaptive struct {
	window *SlidingWindow
	store  store.Store
	keys   keyspace
	load   load.Provider
	params AdaptiveParams
	logger *logr.Logger
}

// NewAdaptive 创建自适应策略
// window: 计数使用的滑动窗口
// provider: 系统负载来源，为 nil 时负载视为 0
func NewAdaptive(window *SlidingWindow, provider load.Provider, params AdaptiveParams, logger *logr.Logger) *Adaptive {
	if logger == nil {
		discard := logr.Discard()
		logger = &discard
	}
	return &Adaptive{
		window: window,
		store:  window.store,
		keys:   window.keys,
		load:   provider,
		params: params,
		logger: logger,
	}
}

// Name 返回策略名称
func (a *Adaptive) Name() string {
	return constants.StrategyAdaptive
}

// Decide 未启用自适应时直接放行，否则在派生命名空间下以降低后的上限执行滑动窗口
func (a *Adaptive) Decide(ctx context.Context, subject Subject) (Decision, error) {
	p := subject.Profile
	if !p.AdaptiveEnabled {
		return Decision{Allowed: true, Limit: p.RequestsPerMinute, Remaining: p.RequestsPerMinute, Strategy: constants.StrategyAdaptive}, nil
	}

	state, err := a.State(ctx, subject.Identifier)
	if err != nil {
		return Decision{}, err
	}

	limit := a.params.Limit(p.RequestsPerMinute, state, a.systemLoad(ctx))
	d, err := a.window.Check(ctx, adaptiveIdentifier(subject.Identifier), p.Name, limit, a.window.window)
	if err != nil {
		return Decision{}, err
	}
	d.Strategy = constants.StrategyAdaptive
	return d, nil
}

// EffectiveLimit 返回标识在指定配置下当前的自适应上限
func (a *Adaptive) EffectiveLimit(ctx context.Context, identifier string, p profile.LimiterProfile) (int, error) {
	if !p.AdaptiveEnabled {
		return p.RequestsPerMinute, nil
	}
	state, err := a.State(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return a.params.Limit(p.RequestsPerMinute, state, a.systemLoad(ctx)), nil
}

// State 读取标识的自适应状态，不存在或无法解码时返回初始状态
func (a *Adaptive) State(ctx context.Context, identifier string) (AdaptiveState, error) {
	raw, err := a.store.Get(ctx, a.keys.adaptive(identifier))
	if err != nil {
		return AdaptiveState{}, err
	}
	var state AdaptiveState
	if !decodeState(raw, &state) {
		return AdaptiveState{}, nil
	}
	return state, nil
}

// systemLoad 读取系统负载，失败时记录日志并视为 0
func (a *Adaptive) systemLoad(ctx context.Context) float64 {
	if a.load == nil {
		return 0
	}
	v, err := a.load.Load(ctx)
	if err != nil {
		a.logger.V(1).Info("System load unavailable, assuming idle", "provider", a.load.Type(), "error", err.Error())
		return 0
	}
	return load.Clamp(v)
}
