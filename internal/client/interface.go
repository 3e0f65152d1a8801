// Package client 提供网关访问被保护上游服务的HTTP客户端
package client

import (
	"net/http"
)

// HTTPClient 代表上游HTTP客户端接口
type HTTPClient interface {
	// Do 将请求改写到上游地址并执行
	Do(req *http.Request) (*http.Response, error)

	// Close 关闭客户端并清理资源
	Close() error

	// Target 获取上游基础地址
	Target() string
}
