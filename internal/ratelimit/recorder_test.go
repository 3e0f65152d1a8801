package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T, clock *fakeClock, params RecorderParams) (*Recorder, *Adaptive) {
	t.Helper()
	s := newTestStore(t, clock)
	return NewRecorder(s, testPrefix, clock, params), NewAdaptive(NewSlidingWindow(s, testPrefix, clock), nil, DefaultAdaptiveParams(), nil)
}

func TestRecorder_ErrorRate(t *testing.T) {
	clock := newFakeClock()
	r, a := newTestRecorder(t, clock, DefaultRecorderParams())
	ctx := context.Background()

	statuses := []int{200, 201, 404, 200, 500}
	for _, status := range statuses {
		require.NoError(t, r.Record(ctx, "user:1", "default", status))
	}

	analytics, ok, err := r.Analytics(ctx, "user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), analytics.TotalRequests)
	assert.Equal(t, int64(2), analytics.ErrorCount)
	assert.Equal(t, clock.Now().Unix(), analytics.LastRequestAt)
	assert.Equal(t, "default", analytics.LastProfile)

	state, err := a.State(ctx, "user:1")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, state.ErrorRate, 1e-9)
	assert.False(t, state.SuspiciousActivity)
	assert.Equal(t, int64(5), state.Samples)
}

func TestRecorder_Suspicious(t *testing.T) {
	ctx := context.Background()

	t.Run("error rate", func(t *testing.T) {
		clock := newFakeClock()
		r, a := newTestRecorder(t, clock, DefaultRecorderParams())
		require.NoError(t, r.Record(ctx, "ip:1", "default", 200))
		require.NoError(t, r.Record(ctx, "ip:1", "default", 401))
		// 1/2 不超过 0.5
		state, err := a.State(ctx, "ip:1")
		require.NoError(t, err)
		assert.False(t, state.SuspiciousActivity)

		require.NoError(t, r.Record(ctx, "ip:1", "default", 403))
		state, err = a.State(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, state.SuspiciousActivity)
	})

	t.Run("request volume", func(t *testing.T) {
		clock := newFakeClock()
		params := DefaultRecorderParams()
		params.SuspiciousRequests = 3
		r, a := newTestRecorder(t, clock, params)

		for i := 0; i < 3; i++ {
			require.NoError(t, r.Record(ctx, "ip:1", "default", 200))
		}
		state, err := a.State(ctx, "ip:1")
		require.NoError(t, err)
		assert.False(t, state.SuspiciousActivity)

		require.NoError(t, r.Record(ctx, "ip:1", "default", 200))
		state, err = a.State(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, state.SuspiciousActivity)
	})
}

func TestRecorder_AnalyticsWindowResets(t *testing.T) {
	clock := newFakeClock()
	params := DefaultRecorderParams()
	params.AnalyticsWindow = 10 * time.Minute
	r, a := newTestRecorder(t, clock, params)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Record(ctx, "user:1", "default", 500))
	}

	clock.Advance(10 * time.Minute)
	require.NoError(t, r.Record(ctx, "user:1", "default", 200))

	analytics, ok, err := r.Analytics(ctx, "user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), analytics.TotalRequests)
	assert.Equal(t, int64(0), analytics.ErrorCount)
	assert.Equal(t, clock.Now().Unix(), analytics.WindowStart)

	// 新窗口的状态覆盖旧窗口，即使样本更少
	state, err := a.State(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.ErrorRate)
	assert.Equal(t, int64(1), state.Samples)
}

func TestRecorder_StaleWriteIgnored(t *testing.T) {
	clock := newFakeClock()
	r, a := newTestRecorder(t, clock, DefaultRecorderParams())
	ctx := context.Background()

	putAdaptiveState(t, a.store, "user:1", AdaptiveState{
		ErrorRate:   0.9,
		Samples:     50,
		WindowStart: clock.Now().Unix(),
	})

	require.NoError(t, r.Record(ctx, "user:1", "default", 200))

	state, err := a.State(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), state.Samples)
	assert.InDelta(t, 0.9, state.ErrorRate, 1e-9)
}

func TestRecorder_StoreError(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	r := NewRecorder(s, testPrefix, clock, DefaultRecorderParams())
	require.NoError(t, s.Close())

	assert.Error(t, r.Record(context.Background(), "user:1", "default", 200))
}
