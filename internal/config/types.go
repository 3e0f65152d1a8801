package config

// Config 代表主配置结构体，包含网关、管理服务、存储、限流和身份识别的完整配置
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway" validate:"required"`
	Admin    AdminConfig    `yaml:"admin"`
	Store    StoreConfig    `yaml:"store" validate:"required"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Identity IdentityConfig `yaml:"identity"`
	Alerts   AlertConfig    `yaml:"alerts"`
}

// GatewayConfig 代表网关服务配置，定义限流网关实例和它保护的上游
type GatewayConfig struct {
	Name     string         `yaml:"name"`
	Port     int            `yaml:"port" validate:"min=1,max=65535"`
	Address  string         `yaml:"address"`
	Upstream UpstreamConfig `yaml:"upstream" validate:"required"`
	Timeout  *TimeoutConfig `yaml:"timeout,omitempty"`
}

// UpstreamConfig 代表被保护的上游服务配置
type UpstreamConfig struct {
	URL                 string `yaml:"url" validate:"required,http_url"`
	Timeout             int    `yaml:"timeout,omitempty" validate:"omitempty,min=1000,max=86400000"` // 单位：毫秒
	MaxIdleConns        int    `yaml:"maxIdleConns,omitempty" validate:"min=0,max=10000"`
	MaxIdleConnsPerHost int    `yaml:"maxIdleConnsPerHost,omitempty" validate:"min=0,max=10000"`
}

// AdminConfig 代表管理服务配置，用于健康检查、监控指标和运行时查询
type AdminConfig struct {
	Port    int            `yaml:"port" validate:"min=1,max=65535"`
	Address string         `yaml:"address"`
	Timeout *TimeoutConfig `yaml:"timeout,omitempty"`
}

// TimeoutConfig 代表超时配置，定义各种操作的超时时间（单位：毫秒）
type TimeoutConfig struct {
	Idle  int `yaml:"idle,omitempty" validate:"omitempty,min=1000,max=86400000"`
	Read  int `yaml:"read,omitempty" validate:"omitempty,min=1000,max=86400000"`
	Write int `yaml:"write,omitempty" validate:"omitempty,min=1000,max=86400000"`
}

// StoreConfig 代表后端键值存储配置
type StoreConfig struct {
	Type                 string         `yaml:"type" validate:"oneof=memory redis sharded"`
	KeyPrefix            string         `yaml:"keyPrefix"`
	Timeout              int            `yaml:"timeout" validate:"min=1,max=60000"` // 单位：毫秒
	FailurePolicy        string         `yaml:"failurePolicy" validate:"oneof=open closed"`
	FailClosedRetryAfter int            `yaml:"failClosedRetryAfter" validate:"min=1,max=3600"` // 单位：秒
	Breaker              *BreakerConfig `yaml:"breaker,omitempty"`
	Memory               *MemoryConfig  `yaml:"memory,omitempty"`
	Redis                *RedisConfig   `yaml:"redis,omitempty"`
	Shards               []ShardConfig  `yaml:"shards,omitempty" validate:"dive"`
}

// BreakerConfig 代表存储熔断器配置，存储持续失败时快速进入降级策略
type BreakerConfig struct {
	Threshold   float64 `yaml:"threshold,omitempty" validate:"omitempty,min=0.01,max=1.0"`
	Cooldown    int     `yaml:"cooldown,omitempty" validate:"omitempty,min=1000,max=3600000"` // 单位：毫秒
	MaxRequests uint32  `yaml:"maxRequests,omitempty" validate:"omitempty,min=1,max=100"`
	Interval    int     `yaml:"interval,omitempty" validate:"omitempty,min=1000,max=3600000"` // 单位：毫秒
}

// MemoryConfig 代表进程内存储配置
type MemoryConfig struct {
	Shards          int `yaml:"shards" validate:"min=0,max=4096"`
	CleanupInterval int `yaml:"cleanupInterval" validate:"omitempty,min=1000,max=3600000"` // 单位：毫秒
}

// RedisConfig 代表 Redis 连接配置
type RedisConfig struct {
	Address  string `yaml:"address" validate:"required"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db" validate:"min=0,max=15"`
	PoolSize int    `yaml:"poolSize" validate:"min=0,max=1000"`
}

// ShardConfig 代表一致性哈希环中的单个 Redis 节点
type ShardConfig struct {
	Name  string      `yaml:"name" validate:"required"`
	Redis RedisConfig `yaml:"redis" validate:"required"`
}

// LimiterConfig 代表限流引擎配置
type LimiterConfig struct {
	DefaultProfile string          `yaml:"defaultProfile"`
	Profiles       []ProfileConfig `yaml:"profiles,omitempty" validate:"dive"`
	Routes         []RouteConfig   `yaml:"routes,omitempty" validate:"dive"`
	Bypass         BypassConfig    `yaml:"bypass"`
	Adaptive       AdaptiveConfig  `yaml:"adaptive"`
	Load           LoadConfig      `yaml:"load"`
	HourlyQuota    bool            `yaml:"hourlyQuota"` // 对 API Key 调用方执行 requestsPerHour
}

// ProfileConfig 代表单个命名限流配置，覆盖或新增内置配置
type ProfileConfig struct {
	Name                string  `yaml:"name" validate:"required"`
	RequestsPerMinute   int     `yaml:"requestsPerMinute" validate:"min=1,max=1000000"`
	RequestsPerHour     int     `yaml:"requestsPerHour" validate:"min=0,max=100000000"`
	BurstAllowance      int     `yaml:"burstAllowance" validate:"min=0,max=1000000"`
	AdaptiveEnabled     bool    `yaml:"adaptiveEnabled"`
	BucketSize          int     `yaml:"bucketSize" validate:"min=1,max=1000000"`
	RefillRatePerSecond float64 `yaml:"refillRatePerSecond" validate:"gt=0"`
}

// RouteConfig 代表路径前缀到限流配置名称的映射
type RouteConfig struct {
	Prefix  string `yaml:"prefix" validate:"required,startswith=/"`
	Profile string `yaml:"profile" validate:"required"`
}

// BypassConfig 代表绕过限流的条件
type BypassConfig struct {
	Roles []string `yaml:"roles,omitempty"`
	Paths []string `yaml:"paths,omitempty"`
}

// AdaptiveConfig 代表自适应限流的阈值与乘数
type AdaptiveConfig struct {
	ErrorRateThreshold  float64 `yaml:"errorRateThreshold" validate:"min=0,max=1"`
	ErrorRatePenalty    float64 `yaml:"errorRatePenalty" validate:"min=0,max=1"`
	LoadThreshold       float64 `yaml:"loadThreshold" validate:"min=0,max=1"`
	LoadPenalty         float64 `yaml:"loadPenalty" validate:"min=0,max=1"`
	SuspiciousPenalty   float64 `yaml:"suspiciousPenalty" validate:"min=0,max=1"`
	SuspiciousErrorRate float64 `yaml:"suspiciousErrorRate" validate:"min=0,max=1"`
	SuspiciousRequests  int64   `yaml:"suspiciousRequests" validate:"min=0"`
	AnalyticsWindow     int     `yaml:"analyticsWindow" validate:"min=0,max=86400000"` // 单位：毫秒
}

// LoadConfig 代表系统负载来源配置
type LoadConfig struct {
	Type     string  `yaml:"type" validate:"oneof=static store inflight"`
	Value    float64 `yaml:"value" validate:"min=0,max=1"`
	Capacity int64   `yaml:"capacity" validate:"min=0"`
	Refresh  int     `yaml:"refresh" validate:"min=0,max=3600000"` // 单位：毫秒
}

// IdentityConfig 代表请求身份识别配置
type IdentityConfig struct {
	APIKeyHeader       string     `yaml:"apiKeyHeader"`
	UserHeader         string     `yaml:"userHeader"`
	RoleHeader         string     `yaml:"roleHeader"`
	FingerprintHeaders []string   `yaml:"fingerprintHeaders,omitempty"`
	TrustForwarded     bool       `yaml:"trustForwarded"`
	TrustHeaders       bool       `yaml:"trustHeaders"` // 前置认证层会覆盖身份头部时才开启
	JWT                *JWTConfig `yaml:"jwt,omitempty"`
}

// JWTConfig 代表 Bearer JWT 声明解析配置（HS256）
type JWTConfig struct {
	Secret      string `yaml:"secret" validate:"required,min=16"`
	RoleClaim   string `yaml:"roleClaim"`
	APIKeyClaim string `yaml:"apiKeyClaim"`
}

// AlertConfig 代表限流告警配置
type AlertConfig struct {
	LogPerSecond float64 `yaml:"logPerSecond" validate:"min=0"`
	LogBurst     int     `yaml:"logBurst" validate:"min=0"`
}
