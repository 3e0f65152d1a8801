// Package identity 负责从 HTTP 请求中提取调用方信息并生成限流标识
package identity

import "net/http"

// Request 代表限流决策所需的请求描述，与具体 HTTP 框架无关
type Request struct {
	Method   string      // 请求方法
	Path     string      // 请求路径
	ClientIP string      // 客户端地址
	Headers  http.Header // 请求头部，用于生成指纹
	UserID   string      // 已认证用户标识，可为空
	APIKeyID string      // 已认证 API Key 标识，可为空
	Role     string      // 已认证用户角色，可为空
}
