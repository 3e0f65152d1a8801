package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_NilStore(t *testing.T) {
	registry, err := profile.NewRegistry("")
	require.NoError(t, err)

	_, err = NewLimiter(registry, nil)
	assert.ErrorIs(t, err, store.ErrNilStore)
}

func TestLimiter_SlidingWindowScenario(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()
	req := anonymousRequest("/api/login")

	for i, want := range []int{4, 3, 2, 1, 0} {
		outcome := limiter.Evaluate(ctx, req, constants.ProfileAuth)
		require.True(t, outcome.Decision.Allowed, "request %d", i+1)
		assert.Equal(t, want, outcome.Decision.Remaining)
		assert.Equal(t, want, outcome.Base.Remaining)
		assert.Equal(t, constants.StrategyAdvanced, outcome.Decision.Strategy)
		clock.Advance(2 * time.Second)
	}

	outcome := limiter.Evaluate(ctx, req, constants.ProfileAuth)
	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, constants.StrategySlidingWindow, outcome.Decision.Strategy)
	assert.Equal(t, 60, outcome.Decision.RetryAfter)
	assert.Equal(t, 5, outcome.Base.Limit)
	assert.Regexp(t, `^ip:203\.0\.113\.7:fp:[0-9a-f]{8}$`, outcome.Identifier)
}

func TestLimiter_TokenBucketScenario(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()
	req := &identity.Request{Path: "/api/orders", UserID: "7"}

	for i := 0; i < 2; i++ {
		require.True(t, limiter.Evaluate(ctx, req, "burst").Decision.Allowed)
	}

	outcome := limiter.Evaluate(ctx, req, "burst")
	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, constants.StrategyTokenBucket, outcome.Decision.Strategy)
	assert.Equal(t, 2, outcome.Decision.RetryAfter)
	assert.Equal(t, "user:7", outcome.Identifier)

	// 响应头仍然来自基础滑动窗口
	assert.True(t, outcome.Base.Allowed)
	assert.Equal(t, 100, outcome.Base.Limit)
	assert.Equal(t, 97, outcome.Base.Remaining)

	clock.Advance(2 * time.Second)
	assert.True(t, limiter.Evaluate(ctx, req, "burst").Decision.Allowed)
}

func TestLimiter_AdaptiveScenario(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	limiter := newTestLimiter(t, clock, s)
	ctx := context.Background()
	req := &identity.Request{Path: "/api/products", APIKeyID: "k1"}

	putAdaptiveState(t, s, "api_key:k1", AdaptiveState{ErrorRate: 0.2, Samples: 10})

	for i := 0; i < 30; i++ {
		outcome := limiter.Evaluate(ctx, req, constants.ProfileDefault)
		require.True(t, outcome.Decision.Allowed, "request %d", i+1)
		clock.Advance(100 * time.Millisecond)
	}

	outcome := limiter.Evaluate(ctx, req, constants.ProfileDefault)
	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, constants.StrategyAdaptive, outcome.Decision.Strategy)
	assert.Equal(t, 30, outcome.Decision.Limit)
	// 基础窗口 60/min 本身会放行
	assert.True(t, outcome.Base.Allowed)
	assert.Equal(t, 29, outcome.Base.Remaining)
}

func TestLimiter_Bypass(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()

	health := anonymousRequest("/api/health")
	admin := &identity.Request{Path: "/api/orders", UserID: "1", Role: "admin"}

	for i := 0; i < 50; i++ {
		for _, req := range []*identity.Request{health, admin} {
			outcome := limiter.Evaluate(ctx, req, "flat")
			require.True(t, outcome.Decision.Allowed)
			assert.True(t, outcome.Bypassed)
			assert.Empty(t, outcome.Identifier)
		}
	}

	// 豁免请求不消耗计数
	outcome := limiter.Evaluate(ctx, &identity.Request{Path: "/api/orders", UserID: "1"}, "flat")
	assert.True(t, outcome.Decision.Allowed)
	assert.Equal(t, 9, outcome.Base.Remaining)
}

func TestLimiter_UnknownProfileFallsBack(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))

	outcome := limiter.Evaluate(context.Background(), anonymousRequest("/x"), "does-not-exist")
	assert.True(t, outcome.Decision.Allowed)
	assert.Equal(t, constants.ProfileDefault, outcome.Profile.Name)
	assert.Equal(t, 60, outcome.Decision.Limit)
	assert.Equal(t, 59, outcome.Decision.Remaining)
}

func TestLimiter_FailurePolicy(t *testing.T) {
	ctx := context.Background()

	newBrokenLimiter := func(t *testing.T, opts ...Option) *Limiter {
		clock := newFakeClock()
		s := newTestStore(t, clock)
		require.NoError(t, s.Close())
		return newTestLimiter(t, clock, s, opts...)
	}

	t.Run("open", func(t *testing.T) {
		limiter := newBrokenLimiter(t)
		outcome := limiter.Evaluate(ctx, anonymousRequest("/api/login"), constants.ProfileAuth)
		assert.True(t, outcome.Decision.Allowed)
		assert.True(t, outcome.Degraded)
		assert.Equal(t, constants.StrategyDegraded, outcome.Decision.Strategy)
		assert.Equal(t, 5, outcome.Base.Limit)
	})

	t.Run("closed", func(t *testing.T) {
		sink := &recordingSink{}
		limiter := newBrokenLimiter(t, WithFailurePolicy(constants.FailureClosed, 7), WithAlertSink(sink))
		outcome := limiter.Evaluate(ctx, anonymousRequest("/api/login"), constants.ProfileAuth)
		assert.False(t, outcome.Decision.Allowed)
		assert.True(t, outcome.Degraded)
		assert.Equal(t, constants.StrategyStoreUnavailable, outcome.Decision.Strategy)
		assert.Equal(t, 7, outcome.Decision.RetryAfter)

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, constants.StrategyStoreUnavailable, events[0].Strategy)
	})
}

func TestLimiter_ConcurrentRequestsRespectLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	req := &identity.Request{Path: "/api/orders", APIKeyID: "shared"}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Evaluate(context.Background(), req, "flat").Decision.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
}

func TestLimiter_Determinism(t *testing.T) {
	run := func() []Decision {
		clock := newFakeClock()
		limiter := newTestLimiter(t, clock, newTestStore(t, clock))
		ctx := context.Background()

		steps := []time.Duration{50 * time.Millisecond, 0, 2 * time.Second, 300 * time.Millisecond}
		keys := []string{"a", "b"}
		var decisions []Decision
		for i := 0; i < 150; i++ {
			req := &identity.Request{Path: "/api/items", APIKeyID: keys[i%len(keys)]}
			outcome := limiter.Evaluate(ctx, req, constants.ProfileDefault)
			decisions = append(decisions, outcome.Decision)

			status := 200
			if i%4 == 0 {
				status = 500
			}
			limiter.Record(ctx, outcome, status)
			clock.Advance(steps[i%len(steps)])
		}
		return decisions
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)

	rejected := 0
	for _, d := range first {
		if !d.Allowed {
			rejected++
		}
	}
	assert.Positive(t, rejected)
}

func TestLimiter_AlertsOnRejection(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	limiter := newTestLimiter(t, clock, newTestStore(t, clock), WithAlertSink(sink))
	ctx := context.Background()
	req := anonymousRequest("/api/upload")

	for i := 0; i < 6; i++ {
		limiter.Evaluate(ctx, req, constants.ProfileUpload)
	}

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, constants.ProfileUpload, events[0].Profile)
	assert.Equal(t, constants.StrategySlidingWindow, events[0].Strategy)
	assert.Equal(t, 60, events[0].RetryAfter)
	assert.Equal(t, "/api/upload", events[0].Path)
	assert.Equal(t, clock.Now(), events[0].At)
}

func TestLimiter_AdaptiveStrictness(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()
	req := &identity.Request{Path: "/api/items", UserID: "42"}

	for i := 0; i < 10; i++ {
		outcome := limiter.Evaluate(ctx, req, constants.ProfileDefault)
		require.True(t, outcome.Decision.Allowed)
		status := 200
		if i < 2 {
			status = 502
		}
		limiter.Record(ctx, outcome, status)
	}

	usage, err := limiter.Usage(ctx, "user:42", constants.ProfileDefault)
	require.NoError(t, err)
	require.NotNil(t, usage.Analytics)
	require.NotNil(t, usage.Adaptive)
	assert.Equal(t, int64(10), usage.Analytics.TotalRequests)
	assert.InDelta(t, 0.2, usage.Adaptive.ErrorRate, 1e-9)
	assert.Less(t, usage.EffectiveLimit, 60)
	assert.Equal(t, 30, usage.EffectiveLimit)
}

func TestLimiter_RecordSkipsRejectedAndBypassed(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()

	limiter.Record(ctx, Outcome{Identifier: "user:1", Decision: Decision{Allowed: false}}, 500)
	limiter.Record(ctx, Outcome{Identifier: "user:1", Bypassed: true, Decision: Decision{Allowed: true}}, 500)

	usage, err := limiter.Usage(ctx, "user:1", "")
	require.NoError(t, err)
	assert.Nil(t, usage.Analytics)
	assert.Nil(t, usage.Adaptive)
	assert.Equal(t, 60, usage.EffectiveLimit)
}

func TestLimiter_SteadyTrafficUnderMinuteLimit(t *testing.T) {
	clock := newFakeClock()
	clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	limiter := newTestLimiter(t, clock, newTestStore(t, clock))
	ctx := context.Background()

	anonymous := anonymousRequest("/api/products")
	keyed := &identity.Request{Method: "GET", Path: "/api/products", APIKeyID: "steady"}

	// 约 54 次/分钟，低于默认配置的分钟上限与令牌补充速率
	for i := 0; i < 1100; i++ {
		for _, req := range []*identity.Request{anonymous, keyed} {
			outcome := limiter.Evaluate(ctx, req, constants.ProfileDefault)
			require.True(t, outcome.Decision.Allowed, "request %d rejected by %s", i+1, outcome.Decision.Strategy)
		}
		clock.Advance(1100 * time.Millisecond)
	}
}

func TestLimiter_HourlyQuotaOptIn(t *testing.T) {
	clock := newFakeClock()
	clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	limiter := newTestLimiter(t, clock, newTestStore(t, clock), WithHourlyQuota(true))
	ctx := context.Background()

	keyed := &identity.Request{Method: "GET", Path: "/api/products", APIKeyID: "metered"}
	for i := 0; i < 1000; i++ {
		outcome := limiter.Evaluate(ctx, keyed, constants.ProfileDefault)
		require.True(t, outcome.Decision.Allowed, "request %d rejected by %s", i+1, outcome.Decision.Strategy)
		clock.Advance(1100 * time.Millisecond)
	}

	outcome := limiter.Evaluate(ctx, keyed, constants.ProfileDefault)
	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, constants.StrategyHourlyQuota, outcome.Decision.Strategy)
	assert.Positive(t, outcome.Decision.RetryAfter)

	// 匿名调用方不受小时配额约束
	anonymous := anonymousRequest("/api/products")
	assert.True(t, limiter.Evaluate(ctx, anonymous, constants.ProfileDefault).Decision.Allowed)
}
