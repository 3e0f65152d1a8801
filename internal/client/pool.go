package client

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/config"
)

// ConnectionPool 连接池管理器
type ConnectionPool struct {
	transport *http.Transport
}

// NewConnectionPool 创建新的连接池实例
func NewConnectionPool(cfg *config.UpstreamConfig) *ConnectionPool {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond

	transport := &http.Transport{
		TLSHandshakeTimeout: 30 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}

	return &ConnectionPool{transport: transport}
}

// GetTransport 获取HTTP传输层
func (p *ConnectionPool) GetTransport() *http.Transport {
	return p.transport
}

// Close 关闭连接池
func (p *ConnectionPool) Close() error {
	p.transport.CloseIdleConnections()
	return nil
}
