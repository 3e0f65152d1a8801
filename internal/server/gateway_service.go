package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/client"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/load"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/ratelimit"
	"github.com/shengyanli1982/throttlegate/internal/response"
)

const (
	// MaxRequestBodySize 定义请求体的最大大小（64MB）
	MaxRequestBodySize = 64 << 20
)

// 流式传输缓冲区对象池
var streamingBufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 4096)
	},
}

// 非流式传输缓冲区对象池
var nonStreamingBufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 32*1024)
	},
}

// hopHeaders 逐跳头部，不向下游转发
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Transfer-Encoding",
	"Upgrade",
}

// GatewayService 代表网关服务：在途计数、限流求值并转发到上游
type GatewayService struct {
	mu         sync.RWMutex
	name       string
	logger     *logr.Logger
	httpClient client.HTTPClient
	middleware *ratelimit.Middleware
	routes     *profile.RouteTable
	inflight   *load.Inflight
	collector  metrics.MetricsCollector
	running    bool
}

// NewGatewayService 创建网关服务
// cfg: 网关配置
// rt: 共享运行时组件
// logger: 日志记录器
func NewGatewayService(cfg *config.GatewayConfig, rt *Runtime, logger *logr.Logger) (*GatewayService, error) {
	httpClient, err := client.NewHTTPClient(&cfg.Upstream, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	return &GatewayService{
		name:       cfg.Name,
		logger:     logger,
		httpClient: httpClient,
		middleware: ratelimit.NewMiddleware(rt.Limiter, rt.Extractor, rt.Routes, logger),
		routes:     rt.Routes,
		inflight:   rt.Inflight,
		collector:  rt.Collector,
	}, nil
}

// RegisterGroup 实现 orbit.Service 接口，注册到 orbit 引擎
func (s *GatewayService) RegisterGroup(g *gin.RouterGroup) {
	g.Use(s.observe(), s.middleware.Handler())

	// 所有方法、所有路径都经过限流后转发
	g.Any("/*path", s.handleForward)
}

// observe 维护在途计数并记录请求指标，被限流拒绝的请求同样计入
func (s *GatewayService) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		method := c.Request.Method
		route := s.routes.Match(c.Request.URL.Path) // 路由标签取限流配置名称

		s.collector.RecordRequest(s.name, method, route)
		s.collector.RecordInflight(s.name, s.inflight.Acquire())
		defer func() {
			s.collector.RecordInflight(s.name, s.inflight.Release())
		}()

		c.Next()

		s.collector.RecordResponse(s.name, method, route,
			c.Writer.Status(),
			time.Since(startTime),
			requestSize(c.Request),
			int64(max(c.Writer.Size(), 0)),
		)
	}
}

// handleForward 处理转发请求
func (s *GatewayService) handleForward(c *gin.Context) {
	req := c.Request

	proxyReq, err := s.createProxyRequest(req)
	if err != nil {
		s.logger.Error(err, "Failed to create proxy request", "method", req.Method, "path", req.URL.Path)
		s.collector.RecordError(s.name, constants.ErrorTypeProxy)

		if errors.Is(err, ErrRequestBodyTooLarge) {
			response.Error(response.CodeBadRequest, err.Error()).AbortJSON(c, http.StatusRequestEntityTooLarge)
			return
		}
		response.Error(response.CodeBadRequest, "failed to read request").AbortJSON(c, http.StatusBadRequest)
		return
	}

	resp, err := s.httpClient.Do(proxyReq)
	if err != nil {
		s.logger.Error(err, "Upstream request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"upstream", s.httpClient.Target())
		s.collector.RecordError(s.name, constants.ErrorTypeUpstream)
		response.BadGateway(c, "upstream service unavailable")
		return
	}
	defer resp.Body.Close()

	s.forwardResponse(c, resp)

	s.logger.V(2).Info("Request forwarded",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode)
}

// createProxyRequest 创建代理请求，请求体读入内存并限制大小
func (s *GatewayService) createProxyRequest(originalReq *http.Request) (*http.Request, error) {
	var proxyBody io.Reader

	if originalReq.Body != nil && originalReq.Body != http.NoBody {
		defer func() {
			if closeErr := originalReq.Body.Close(); closeErr != nil {
				s.logger.V(1).Info("Failed to close original request body", "error", closeErr)
			}
		}()

		bodyBytes, err := io.ReadAll(io.LimitReader(originalReq.Body, MaxRequestBodySize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(bodyBytes) > MaxRequestBodySize {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrRequestBodyTooLarge, MaxRequestBodySize)
		}
		if len(bodyBytes) > 0 {
			proxyBody = bytes.NewReader(bodyBytes)
		}
	}

	// URL 由 httpClient 重写到上游
	proxyReq, err := http.NewRequestWithContext(originalReq.Context(), originalReq.Method, originalReq.URL.String(), proxyBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy request: %w", err)
	}

	for name, values := range originalReq.Header {
		for _, value := range values {
			proxyReq.Header.Add(name, value)
		}
	}
	for _, name := range hopHeaders {
		proxyReq.Header.Del(name)
	}

	proxyReq.Header.Set(constants.HeaderXForwardedFor, forwardedFor(originalReq))
	proxyReq.Header.Set(constants.HeaderXForwardedProto, scheme(originalReq))
	proxyReq.Header.Set(constants.HeaderXForwardedHost, originalReq.Host)

	return proxyReq, nil
}

// forwardResponse 转发上游响应，限流响应头已由中间件写入
func (s *GatewayService) forwardResponse(c *gin.Context, resp *http.Response) {
	header := c.Writer.Header()
	for name, values := range resp.Header {
		header.Del(name)
		for _, value := range values {
			header.Add(name, value)
		}
	}
	for _, name := range hopHeaders {
		header.Del(name)
	}

	c.Status(resp.StatusCode)

	if isStreamingResponse(resp) {
		s.forwardStreamingResponse(c, resp)
	} else {
		s.forwardRegularResponse(c, resp)
	}
}

// isStreamingResponse 判断是否为流式响应
func isStreamingResponse(resp *http.Response) bool {
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") || strings.Contains(contentType, "application/stream+json") {
		return true
	}
	for _, te := range resp.TransferEncoding {
		if te == "chunked" {
			return true
		}
	}
	return false
}

// forwardStreamingResponse 转发流式响应
func (s *GatewayService) forwardStreamingResponse(c *gin.Context, resp *http.Response) {
	buffer := streamingBufferPool.Get()
	defer streamingBufferPool.Put(buffer)
	bufSlice := buffer.([]byte)

	for {
		n, err := resp.Body.Read(bufSlice)
		if n > 0 {
			if _, writeErr := c.Writer.Write(bufSlice[:n]); writeErr != nil {
				s.logger.Error(writeErr, "Failed to write streaming response")
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Error(err, "Error reading streaming response")
			}
			return
		}
	}
}

// forwardRegularResponse 转发常规响应
func (s *GatewayService) forwardRegularResponse(c *gin.Context, resp *http.Response) {
	buffer := nonStreamingBufferPool.Get()
	defer nonStreamingBufferPool.Put(buffer)
	bufSlice := buffer.([]byte)

	if _, err := io.CopyBuffer(c.Writer, resp.Body, bufSlice); err != nil {
		s.logger.Error(err, "Failed to copy response body")
	}
}

// Run 启动网关服务
func (s *GatewayService) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.logger.Info("Gateway service started", "upstream", s.httpClient.Target())
}

// Stop 停止网关服务并关闭上游客户端
func (s *GatewayService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if err := s.httpClient.Close(); err != nil {
		s.logger.Error(err, "Failed to close upstream client")
	}

	s.logger.Info("Gateway service stopped")
}

// IsRunning 检查服务是否运行中
func (s *GatewayService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// forwardedFor 追加客户端地址到已有的 X-Forwarded-For 链
func forwardedFor(req *http.Request) string {
	ip := req.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.Trim(ip, "[]")

	if prior := req.Header.Get(constants.HeaderXForwardedFor); prior != "" {
		return prior + ", " + ip
	}
	return ip
}

// scheme 获取请求协议
func scheme(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	if proto := req.Header.Get(constants.HeaderXForwardedProto); proto != "" {
		return proto
	}
	return "http"
}

// requestSize 获取请求体大小
func requestSize(req *http.Request) int64 {
	if req.ContentLength > 0 {
		return req.ContentLength
	}
	return 0
}
