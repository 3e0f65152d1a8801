package constants

const (
	// Command line flags - 命令行标志

	// FlagConfig 配置文件路径参数名
	FlagConfig = "config"

	// FlagJSON JSON日志格式参数名
	FlagJSON = "json"

	// FlagRelease 发布模式参数名
	FlagRelease = "release"

	// Flag short aliases - 短参数别名

	// FlagConfigShort 配置文件路径短参数
	FlagConfigShort = "c"

	// FlagJSONShort JSON日志格式短参数
	FlagJSONShort = "j"

	// FlagReleaseShort 发布模式短参数
	FlagReleaseShort = "r"
)

const (
	// MaxUpdateRetries 乐观事务最大重试次数
	MaxUpdateRetries = 16
)

const (
	// Default configuration values - 配置默认值

	// DefaultAddress 默认绑定地址
	DefaultAddress = "0.0.0.0"

	// DefaultGatewayPort 默认网关端口
	DefaultGatewayPort = 8080

	// DefaultAdminPort 默认管理端口
	DefaultAdminPort = 9000

	// DefaultGatewayName 默认网关名称
	DefaultGatewayName = "gateway"

	// DefaultIdleTimeout 默认空闲超时（毫秒）
	DefaultIdleTimeout = 60000

	// DefaultReadTimeout 默认读取超时（毫秒）
	DefaultReadTimeout = 30000

	// DefaultWriteTimeout 默认写入超时（毫秒）
	DefaultWriteTimeout = 30000

	// DefaultUpstreamTimeout 默认上游请求超时（毫秒）
	DefaultUpstreamTimeout = 30000

	// DefaultMaxIdleConns 默认上游最大空闲连接数
	DefaultMaxIdleConns = 100

	// DefaultMaxIdleConnsPerHost 默认上游每主机最大空闲连接数
	DefaultMaxIdleConnsPerHost = 10

	// DefaultStoreTimeout 默认存储操作超时（毫秒）
	DefaultStoreTimeout = 100

	// DefaultKeyPrefix 默认存储键前缀
	DefaultKeyPrefix = "throttlegate:"

	// DefaultMemoryShards 默认内存存储分段数
	DefaultMemoryShards = 64

	// DefaultMemoryCleanupInterval 默认内存存储过期清理间隔（毫秒）
	DefaultMemoryCleanupInterval = 60000

	// DefaultRedisAddress 默认 Redis 地址
	DefaultRedisAddress = "127.0.0.1:6379"

	// DefaultRedisPoolSize 默认 Redis 连接池大小
	DefaultRedisPoolSize = 10

	// DefaultBreakerName 默认熔断器名称
	DefaultBreakerName = "store"

	// DefaultBreakerThreshold 默认熔断器阈值
	DefaultBreakerThreshold = 0.5

	// DefaultBreakerCooldown 默认熔断器冷却时间（毫秒）
	DefaultBreakerCooldown = 10000

	// DefaultBreakerMaxRequests 默认熔断器半开状态最大请求数
	DefaultBreakerMaxRequests = 3

	// DefaultBreakerInterval 默认熔断器统计周期（毫秒）
	DefaultBreakerInterval = 10000

	// DefaultBreakerMinRequests 触发熔断的最小请求数
	DefaultBreakerMinRequests = 10

	// DefaultLoadRefresh 默认负载缓存刷新间隔（毫秒）
	DefaultLoadRefresh = 1000

	// DefaultInflightCapacity 默认在途请求容量
	DefaultInflightCapacity = 1000

	// DefaultAlertLogPerSecond 默认告警日志每秒条数
	DefaultAlertLogPerSecond = 10

	// DefaultAlertLogBurst 默认告警日志突发条数
	DefaultAlertLogBurst = 20

	// DefaultExemptPath 默认豁免路径关键字
	DefaultExemptPath = "health"

	// DefaultPrivilegedRole 默认特权角色
	DefaultPrivilegedRole = "admin"

	// DefaultJWTRoleClaim 默认 JWT 角色声明
	DefaultJWTRoleClaim = "role"

	// DefaultJWTAPIKeyClaim 默认 JWT API Key 声明
	DefaultJWTAPIKeyClaim = "api_key_id"
)
