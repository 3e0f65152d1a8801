package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// 客户端相关错误定义
var (
	ErrNilRequest      = errors.New(constants.ErrMsgNilRequest)
	ErrClientClosed    = errors.New(constants.ErrMsgClientClosed)
	ErrInvalidUpstream = errors.New(constants.ErrMsgInvalidUpstream)
)

// httpClient 上游HTTP客户端实现
type httpClient struct {
	target *url.URL
	client *http.Client
	pool   *ConnectionPool
	closed atomic.Bool
	logger *logr.Logger
}

// NewHTTPClient 创建新的上游HTTP客户端实例
// cfg: 上游配置
// logger: 日志记录器
func NewHTTPClient(cfg *config.UpstreamConfig, logger *logr.Logger) (HTTPClient, error) {
	target, err := parseUpstreamURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		discard := logr.Discard()
		logger = &discard
	}

	pool := NewConnectionPool(cfg)
	return &httpClient{
		target: target,
		client: &http.Client{
			Transport: pool.GetTransport(),
			// 上游重定向原样返回给客户端
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		pool:   pool,
		logger: logger,
	}, nil
}

// parseUpstreamURL 解析上游地址，缺少协议时补充 http://
func parseUpstreamURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = constants.DefaultScheme + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidUpstream, raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %s: missing host", ErrInvalidUpstream, raw)
	}
	return u, nil
}

// Do 执行HTTP请求到上游服务
func (c *httpClient) Do(req *http.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if req == nil {
		return nil, ErrNilRequest
	}

	c.prepareRequest(req)
	c.logger.V(2).Info("Forwarding request to upstream", "method", req.Method, "target_url", req.URL.String())

	return c.client.Do(req)
}

// prepareRequest 将请求地址改写为 上游基础地址 + 请求路径
// 注意：此方法会修改传入的http.Request
func (c *httpClient) prepareRequest(req *http.Request) {
	req.URL.Scheme = c.target.Scheme
	req.URL.Host = c.target.Host
	req.URL.Path = joinPath(c.target.Path, req.URL.Path)
	req.URL.RawPath = ""
	if c.target.RawQuery != "" {
		if req.URL.RawQuery == "" {
			req.URL.RawQuery = c.target.RawQuery
		} else {
			req.URL.RawQuery = c.target.RawQuery + "&" + req.URL.RawQuery
		}
	}
	req.Host = c.target.Host
	req.RequestURI = ""

	if req.Header.Get(constants.HeaderUserAgent) == "" {
		req.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	}
}

// joinPath 拼接上游基础路径与请求路径
func joinPath(base, path string) string {
	switch {
	case base == "" || base == "/":
		if path == "" {
			return "/"
		}
		return path
	case path == "" || path == "/":
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Close 关闭客户端并清理资源
func (c *httpClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.pool.Close()
}

// Target 获取上游基础地址
func (c *httpClient) Target() string {
	return c.target.String()
}
