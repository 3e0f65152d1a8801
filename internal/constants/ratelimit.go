package constants

const (
	// Strategy names - 限流策略名称

	// StrategySlidingWindow 滑动窗口策略
	StrategySlidingWindow = "sliding_window"

	// StrategyTokenBucket 令牌桶策略
	StrategyTokenBucket = "token_bucket"

	// StrategyHourlyQuota API Key 小时配额用尽
	StrategyHourlyQuota = "hourly_quota"

	// StrategyAdaptive 自适应策略
	StrategyAdaptive = "adaptive"

	// StrategyDegraded 存储不可用时放行（fail-open）
	StrategyDegraded = "degraded"

	// StrategyStoreUnavailable 存储不可用时拒绝（fail-closed）
	StrategyStoreUnavailable = "store_unavailable"

	// StrategyAdvanced 放行响应头中的策略标识
	StrategyAdvanced = "advanced"
)

const (
	// Failure policies - 存储故障策略

	// FailureOpen 存储故障时放行
	FailureOpen = "open"

	// FailureClosed 存储故障时拒绝
	FailureClosed = "closed"
)

const (
	// Store types - 存储类型

	// StoreMemory 进程内存储
	StoreMemory = "memory"

	// StoreRedis Redis 存储
	StoreRedis = "redis"

	// StoreSharded 基于一致性哈希的多 Redis 分片存储
	StoreSharded = "sharded"
)

const (
	// Load provider types - 系统负载来源类型

	// LoadStatic 固定负载值
	LoadStatic = "static"

	// LoadStore 从存储读取外部发布的负载值
	LoadStore = "store"

	// LoadInflight 根据在途请求数计算负载
	LoadInflight = "inflight"
)

const (
	// Store key prefixes - 存储键前缀

	// KeySlidingWindow 滑动窗口时间戳列表
	KeySlidingWindow = "sliding_window:"

	// KeyHourlyQuota 小时配额计数器
	KeyHourlyQuota = "hourly_quota:"

	// KeyTokenBucket 令牌桶状态
	KeyTokenBucket = "token_bucket:"

	// KeyAdaptive 自适应状态
	KeyAdaptive = "adaptive:"

	// KeyAnalytics 使用分析数据
	KeyAnalytics = "request_analytics:"

	// KeySystemLoad 外部发布的系统负载
	KeySystemLoad = "system_load"

	// NamespaceAdaptive 自适应滑动窗口命名空间后缀
	NamespaceAdaptive = "adaptive"
)

const (
	// Identifier prefixes - 标识前缀

	// IdentifierAPIKey API Key 标识前缀
	IdentifierAPIKey = "api_key:"

	// IdentifierUser 用户标识前缀
	IdentifierUser = "user:"

	// IdentifierIP IP 标识前缀
	IdentifierIP = "ip:"

	// IdentifierFingerprint 指纹分隔段
	IdentifierFingerprint = ":fp:"

	// FingerprintLength 指纹十六进制长度
	FingerprintLength = 8
)

const (
	// Profile names - 内置限流配置名称

	// ProfileDefault 默认配置
	ProfileDefault = "default"

	// ProfileAuth 认证接口
	ProfileAuth = "auth"

	// ProfilePayment 支付接口
	ProfilePayment = "payment"

	// ProfileUpload 上传接口
	ProfileUpload = "upload"

	// ProfileSearch 搜索接口
	ProfileSearch = "search"

	// ProfileB2B B2B 接口
	ProfileB2B = "b2b"
)

const (
	// Limiter defaults - 限流默认值

	// WindowSeconds 滑动窗口长度（秒）
	WindowSeconds = 60

	// HourSeconds 小时配额窗口长度（秒）
	HourSeconds = 3600

	// StateTTLSeconds 令牌桶、自适应和分析数据的过期时间（秒）
	StateTTLSeconds = 3600

	// DefaultErrorRateThreshold 错误率阈值
	DefaultErrorRateThreshold = 0.10

	// DefaultErrorRatePenalty 错误率超标时的乘数
	DefaultErrorRatePenalty = 0.5

	// DefaultLoadThreshold 系统负载阈值
	DefaultLoadThreshold = 0.80

	// DefaultLoadPenalty 系统负载超标时的乘数
	DefaultLoadPenalty = 0.7

	// DefaultSuspiciousPenalty 可疑行为乘数
	DefaultSuspiciousPenalty = 0.3

	// DefaultSuspiciousErrorRate 可疑行为错误率阈值
	DefaultSuspiciousErrorRate = 0.5

	// DefaultSuspiciousRequests 可疑行为请求数阈值
	DefaultSuspiciousRequests = 1000

	// DefaultAnalyticsWindow 分析窗口（毫秒）
	DefaultAnalyticsWindow = 3600000

	// DefaultFailClosedRetryAfter fail-closed 时返回的重试秒数
	DefaultFailClosedRetryAfter = 5

	// ErrorStatusThreshold 计为错误的最小 HTTP 状态码
	ErrorStatusThreshold = 400
)
