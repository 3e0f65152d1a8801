package ratelimit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// SlidingWindow 代表滑动窗口计数策略
// 开启小时配额后，API Key 调用方还受限流配置的每小时上限约束
type SlidingWindow struct {
	store  store.Store
	keys   keyspace
	clock  Clock
	window time.Duration
	hourly bool
}

// NewSlidingWindow 创建滑动窗口策略
// s: 状态存储
// keyPrefix: 存储键前缀
// clock: 时间来源
func NewSlidingWindow(s store.Store, keyPrefix string, clock Clock) *SlidingWindow {
	return &SlidingWindow{
		store:  s,
		keys:   keyspace{prefix: keyPrefix},
		clock:  clock,
		window: constants.WindowSeconds * time.Second,
	}
}

// Name 返回策略名称
func (w *SlidingWindow) Name() string {
	return constants.StrategySlidingWindow
}

// Decide 使用限流配置的每分钟上限检查滑动窗口
// 小时配额已用尽时直接拒绝，不占用分钟窗口；分钟窗口放行后才计入小时配额
func (w *SlidingWindow) Decide(ctx context.Context, subject Subject) (Decision, error) {
	p := subject.Profile
	quota := w.hourlyApplies(subject)

	if quota {
		d, exhausted, err := w.hourlyExhausted(ctx, subject.Identifier, p.Name, p.RequestsPerHour, p.RequestsPerMinute)
		if err != nil || exhausted {
			return d, err
		}
	}

	d, err := w.Check(ctx, subject.Identifier, p.Name, p.RequestsPerMinute, w.window)
	if err != nil || !d.Allowed || !quota {
		return d, err
	}

	if _, err := w.store.Increment(ctx, w.keys.hourly(p.Name, subject.Identifier, w.clock.Now()), constants.HourSeconds*time.Second); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// hourlyApplies 判断请求是否受小时配额约束
func (w *SlidingWindow) hourlyApplies(subject Subject) bool {
	return w.hourly &&
		subject.Profile.RequestsPerHour > 0 &&
		strings.HasPrefix(subject.Identifier, constants.IdentifierAPIKey)
}

// Check 检查 (identifier, namespace) 在窗口内的已放行请求数
// 已放行数达到 limit 时拒绝，否则记录本次请求
func (w *SlidingWindow) Check(ctx context.Context, identifier, namespace string, limit int, window time.Duration) (Decision, error) {
	now := w.clock.Now()
	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()
	retryAfter := int(window / time.Second)

	decision := Decision{
		Limit:    limit,
		ResetAt:  now.Add(window),
		Strategy: constants.StrategySlidingWindow,
	}

	err := w.store.Update(ctx, w.keys.window(namespace, identifier), window, func(current []byte) ([]byte, error) {
		var timestamps windowState
		if !decodeState(current, &timestamps) {
			timestamps = nil
		}

		kept := timestamps[:0]
		for _, ts := range timestamps {
			if ts > cutoff {
				kept = append(kept, ts)
			}
		}

		if len(kept) >= limit {
			decision.Allowed = false
			decision.Remaining = 0
			decision.RetryAfter = retryAfter
			return nil, nil
		}

		kept = append(kept, nowMs)
		decision.Allowed = true
		decision.Remaining = limit - len(kept)
		decision.RetryAfter = 0
		return json.Marshal(kept)
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// hourlyExhausted 读取当前小时已放行数，达到上限时返回拒绝到本小时结束的决策
func (w *SlidingWindow) hourlyExhausted(ctx context.Context, identifier, namespace string, limit, minuteLimit int) (Decision, bool, error) {
	now := w.clock.Now()
	raw, err := w.store.Get(ctx, w.keys.hourly(namespace, identifier, now))
	if err != nil {
		return Decision{}, false, err
	}

	// 非数字内容按 0 处理
	count, _ := strconv.ParseInt(string(raw), 10, 64)
	if count < int64(limit) {
		return Decision{}, false, nil
	}

	hourEnd := now.UTC().Truncate(time.Hour).Add(time.Hour)
	retryAfter := int((hourEnd.Sub(now) + time.Second - 1) / time.Second)
	return Decision{
		Allowed:    false,
		Limit:      minuteLimit,
		Remaining:  0,
		ResetAt:    hourEnd,
		RetryAfter: retryAfter,
		Strategy:   constants.StrategyHourlyQuota,
	}, true, nil
}
