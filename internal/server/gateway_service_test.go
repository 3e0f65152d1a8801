package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendGateway(engine http.Handler, method, target, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set(constants.HeaderAPIKeyID, apiKey)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGatewayService_ForwardsAndLimits(t *testing.T) {
	var hits atomic.Int32
	var seenPath, seenQuery, seenForwarded atomic.Value

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		seenPath.Store(r.URL.Path)
		seenQuery.Store(r.URL.RawQuery)
		seenForwarded.Store(r.Header.Get(constants.HeaderXForwardedFor))
		w.Header().Set("X-Upstream", "yes")
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	rt := newTestRuntime(t, upstream.URL, constants.LoadStore)
	engine := newGatewayEngine(t, rt)

	w := sendGateway(engine, http.MethodGet, "/limited/items?q=1", "k1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Equal(t, "2", w.Header().Get(constants.HeaderRateLimitLimit))
	assert.Equal(t, "1", w.Header().Get(constants.HeaderRateLimitRemaining))
	assert.Equal(t, constants.StrategyAdvanced, w.Header().Get(constants.HeaderRateLimitStrategy))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRateLimitReset))

	assert.Equal(t, "/limited/items", seenPath.Load())
	assert.Equal(t, "q=1", seenQuery.Load())
	assert.Equal(t, "192.0.2.1", seenForwarded.Load())

	w = sendGateway(engine, http.MethodPost, "/limited/items", "k1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(constants.HeaderRateLimitRemaining))

	w = sendGateway(engine, http.MethodGet, "/limited/items", "k1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, constants.StrategySlidingWindow, w.Header().Get(constants.HeaderRateLimitStrategy))
	assert.Equal(t, "0", w.Header().Get(constants.HeaderRateLimitRemaining))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRetryAfter))

	var body response.RateLimitBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, response.RateLimitError, body.Error)
	assert.Equal(t, constants.StrategySlidingWindow, body.Strategy)

	assert.Equal(t, int32(2), hits.Load())

	// 其他调用方不受影响
	w = sendGateway(engine, http.MethodGet, "/limited/items", "k2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatewayService_RecordsUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	rt := newTestRuntime(t, upstream.URL, constants.LoadStore)
	engine := newGatewayEngine(t, rt)

	w := sendGateway(engine, http.MethodGet, "/limited/orders", "k3")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	usage, err := rt.Limiter.Usage(context.Background(), constants.IdentifierAPIKey+"k3", "tight")
	require.NoError(t, err)
	require.NotNil(t, usage.Analytics)
	assert.Equal(t, int64(1), usage.Analytics.TotalRequests)
	assert.Equal(t, int64(1), usage.Analytics.ErrorCount)
	assert.Equal(t, "tight", usage.Analytics.LastProfile)
}

func TestGatewayService_UpstreamUnavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	rt := newTestRuntime(t, target, constants.LoadStore)
	engine := newGatewayEngine(t, rt)

	w := sendGateway(engine, http.MethodGet, "/limited/orders", "k4")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "2", w.Header().Get(constants.HeaderRateLimitLimit))

	code, _ := decodeEnvelope(t, w)
	assert.Equal(t, int64(response.CodeBadGateway), code)

	usage, err := rt.Limiter.Usage(context.Background(), constants.IdentifierAPIKey+"k4", "tight")
	require.NoError(t, err)
	require.NotNil(t, usage.Analytics)
	assert.Equal(t, int64(1), usage.Analytics.ErrorCount)
}

func TestGatewayService_BypassPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "healthy")
	}))
	defer upstream.Close()

	rt := newTestRuntime(t, upstream.URL, constants.LoadStore)
	engine := newGatewayEngine(t, rt)

	for i := 0; i < 5; i++ {
		w := sendGateway(engine, http.MethodGet, "/limited/health", "k5")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(constants.HeaderRateLimitStrategy))
	}
}

func TestGatewayService_TracksInflight(t *testing.T) {
	var rt *Runtime
	var observed atomic.Int64

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observed.Store(rt.Inflight.Current())
	}))
	defer upstream.Close()

	rt = newTestRuntime(t, upstream.URL, constants.LoadInflight)
	engine := newGatewayEngine(t, rt)

	w := sendGateway(engine, http.MethodGet, "/anything", "k6")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), observed.Load())
	assert.Equal(t, int64(0), rt.Inflight.Current())
	assert.Same(t, rt.Load, rt.Inflight)
}

func TestGatewayService_CreateProxyRequest(t *testing.T) {
	logger := logr.Discard()
	svc := &GatewayService{logger: &logger}

	original := httptest.NewRequest(http.MethodPost, "http://example.com/limited/items?x=1", strings.NewReader("hello"))
	original.Header.Set("Content-Type", "text/plain")
	original.Header.Set("Connection", "close")
	original.Header.Set(constants.HeaderXForwardedFor, "10.0.0.1")

	proxyReq, err := svc.createProxyRequest(original)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, proxyReq.Method)
	assert.Equal(t, "/limited/items", proxyReq.URL.Path)
	assert.Equal(t, "text/plain", proxyReq.Header.Get("Content-Type"))
	assert.Empty(t, proxyReq.Header.Get("Connection"))
	assert.Equal(t, "10.0.0.1, 192.0.2.1", proxyReq.Header.Get(constants.HeaderXForwardedFor))
	assert.Equal(t, "http", proxyReq.Header.Get(constants.HeaderXForwardedProto))
	assert.Equal(t, "example.com", proxyReq.Header.Get(constants.HeaderXForwardedHost))

	body, err := io.ReadAll(proxyReq.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestIsStreamingResponse(t *testing.T) {
	tests := []struct {
		name     string
		resp     *http.Response
		expected bool
	}{
		{
			name:     "event stream",
			resp:     &http.Response{Header: http.Header{"Content-Type": []string{"text/event-stream"}}},
			expected: true,
		},
		{
			name:     "chunked",
			resp:     &http.Response{Header: http.Header{}, TransferEncoding: []string{"chunked"}},
			expected: true,
		},
		{
			name:     "regular json",
			resp:     &http.Response{Header: http.Header{"Content-Type": []string{"application/json"}}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isStreamingResponse(tt.resp))
		})
	}
}
