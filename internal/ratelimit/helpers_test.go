package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/alert"
	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/store"
	"github.com/stretchr/testify/require"
)

const testPrefix = "test:"

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingSink 记录告警事件
type recordingSink struct {
	mu     sync.Mutex
	events []alert.Event
}

func (s *recordingSink) Notify(_ context.Context, e alert.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Events() []alert.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Event(nil), s.events...)
}

// failingProvider 总是失败的负载来源
type failingProvider struct{}

func (failingProvider) Load(context.Context) (float64, error) { return 0, store.ErrUnavailable }
func (failingProvider) Type() string                          { return "failing" }

func newTestStore(t *testing.T, clock *fakeClock) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore(store.WithNow(clock.Now), store.WithCleanupInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestLimiter(t *testing.T, clock *fakeClock, s store.Store, opts ...Option) *Limiter {
	t.Helper()
	registry, err := profile.NewRegistry("", profile.LimiterProfile{
		Name:                "burst",
		RequestsPerMinute:   100,
		BucketSize:          2,
		RefillRatePerSecond: 0.5,
	}, profile.LimiterProfile{
		Name:                "flat",
		RequestsPerMinute:   10,
		BucketSize:          1000,
		RefillRatePerSecond: 100,
	})
	require.NoError(t, err)

	base := []Option{
		WithClock(clock),
		WithKeyPrefix(testPrefix),
		WithBypass(identity.NewBypass([]string{"admin"}, []string{"health"})),
	}
	limiter, err := NewLimiter(registry, s, append(base, opts...)...)
	require.NoError(t, err)
	return limiter
}

func anonymousRequest(path string) *identity.Request {
	return &identity.Request{
		Method:   "GET",
		Path:     path,
		ClientIP: "203.0.113.7",
		Headers:  map[string][]string{"User-Agent": {"test-agent/1.0"}},
	}
}

func putAdaptiveState(t *testing.T, s store.Store, identifier string, state AdaptiveState) {
	t.Helper()
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), keyspace{prefix: testPrefix}.adaptive(identifier), raw, time.Hour))
}
