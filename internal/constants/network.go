package constants

const (
	// HTTP schemes - HTTP协议方案

	// SchemeHTTP HTTP协议前缀
	SchemeHTTP = "http://"

	// DefaultScheme 默认协议方案
	DefaultScheme = SchemeHTTP
)

const (
	// HTTP headers - HTTP头部

	// HeaderUserAgent User-Agent头部名称
	HeaderUserAgent = "User-Agent"

	// HeaderAuthorization Authorization头部名称
	HeaderAuthorization = "Authorization"

	// HeaderXForwardedFor X-Forwarded-For头部名称
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXForwardedProto X-Forwarded-Proto头部名称
	HeaderXForwardedProto = "X-Forwarded-Proto"

	// HeaderXForwardedHost X-Forwarded-Host头部名称
	HeaderXForwardedHost = "X-Forwarded-Host"

	// HeaderXRealIP X-Real-IP头部名称
	HeaderXRealIP = "X-Real-IP"

	// HeaderAPIKeyID 认证层写入的 API Key 标识
	HeaderAPIKeyID = "X-Api-Key-Id"

	// HeaderUserID 认证层写入的用户标识
	HeaderUserID = "X-User-Id"

	// HeaderUserRole 认证层写入的用户角色
	HeaderUserRole = "X-User-Role"
)

const (
	// Rate limit headers - 限流响应头

	// HeaderRateLimitLimit 当前窗口上限
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining 当前窗口剩余
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset 窗口重置时间（Unix 秒）
	HeaderRateLimitReset = "X-RateLimit-Reset"

	// HeaderRateLimitStrategy 决策策略
	HeaderRateLimitStrategy = "X-RateLimit-Strategy"

	// HeaderRetryAfter 重试等待秒数
	HeaderRetryAfter = "Retry-After"
)

const (
	// Authentication prefixes - 认证前缀

	// BearerPrefix Bearer令牌前缀
	BearerPrefix = "Bearer "
)
