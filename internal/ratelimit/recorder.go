package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// RecorderParams 代表使用记录的可疑行为判定参数
type RecorderParams struct {
	SuspiciousErrorRate float64       // 错误率超过该值判定为可疑
	SuspiciousRequests  int64         // 窗口内请求数超过该值判定为可疑
	AnalyticsWindow     time.Duration // 分析窗口，计数器到期后重新开始
}

// DefaultRecorderParams 返回默认参数
func DefaultRecorderParams() RecorderParams {
	return RecorderParams{
		SuspiciousErrorRate: constants.DefaultSuspiciousErrorRate,
		SuspiciousRequests:  constants.DefaultSuspiciousRequests,
		AnalyticsWindow:     constants.DefaultAnalyticsWindow * time.Millisecond,
	}
}

// RecorderParamsFromConfig 根据配置创建参数
func RecorderParamsFromConfig(cfg *config.AdaptiveConfig) RecorderParams {
	return RecorderParams{
		SuspiciousErrorRate: cfg.SuspiciousErrorRate,
		SuspiciousRequests:  cfg.SuspiciousRequests,
		AnalyticsWindow:     time.Duration(cfg.AnalyticsWindow) * time.Millisecond,
	}
}

// Recorder 代表响应后的使用记录器，是 AdaptiveState 的唯一写入者
type Recorder struct {
	store  store.Store
	keys   keyspace
	clock  Clock
	params RecorderParams
	ttl    time.Duration
}

// NewRecorder 创建使用记录器
func NewRecorder(s store.Store, keyPrefix string, clock Clock, params RecorderParams) *Recorder {
	return &Recorder{
		store:  s,
		keys:   keyspace{prefix: keyPrefix},
		clock:  clock,
		params: params,
		ttl:    constants.StateTTLSeconds * time.Second,
	}
}

// Record 根据响应状态码更新使用统计，并重新计算自适应状态
func (r *Recorder) Record(ctx context.Context, identifier, profileName string, status int) error {
	now := r.clock.Now()
	var analytics UsageAnalytics

	err := r.store.Update(ctx, r.keys.analytics(identifier), r.ttl, func(current []byte) ([]byte, error) {
		var stored UsageAnalytics
		if !decodeState(current, &stored) || r.expired(stored, now) {
			stored = UsageAnalytics{WindowStart: now.Unix()}
		}

		stored.TotalRequests++
		if status >= constants.ErrorStatusThreshold {
			stored.ErrorCount++
		}
		stored.LastRequestAt = now.Unix()
		stored.LastProfile = profileName

		analytics = stored
		return json.Marshal(stored)
	})
	if err != nil {
		return fmt.Errorf("failed to update request analytics: %w", err)
	}

	next := r.derive(analytics)
	err = r.store.Update(ctx, r.keys.adaptive(identifier), r.ttl, func(current []byte) ([]byte, error) {
		var stored AdaptiveState
		if decodeState(current, &stored) && stored.newerThan(next) {
			return nil, nil
		}
		return json.Marshal(next)
	})
	if err != nil {
		return fmt.Errorf("failed to update adaptive state: %w", err)
	}
	return nil
}

// Analytics 读取标识的使用统计，不存在时返回 false
func (r *Recorder) Analytics(ctx context.Context, identifier string) (UsageAnalytics, bool, error) {
	raw, err := r.store.Get(ctx, r.keys.analytics(identifier))
	if err != nil {
		return UsageAnalytics{}, false, err
	}
	var analytics UsageAnalytics
	if !decodeState(raw, &analytics) {
		return UsageAnalytics{}, false, nil
	}
	return analytics, true, nil
}

// expired 判断统计是否已超出分析窗口
func (r *Recorder) expired(u UsageAnalytics, now time.Time) bool {
	if r.params.AnalyticsWindow <= 0 {
		return false
	}
	return now.Sub(time.Unix(u.WindowStart, 0)) >= r.params.AnalyticsWindow
}

// derive 从使用统计推导自适应状态
func (r *Recorder) derive(u UsageAnalytics) AdaptiveState {
	rate := u.ErrorRate()
	return AdaptiveState{
		ErrorRate:          rate,
		SuspiciousActivity: rate > r.params.SuspiciousErrorRate || u.TotalRequests > r.params.SuspiciousRequests,
		Samples:            u.TotalRequests,
		WindowStart:        u.WindowStart,
	}
}
