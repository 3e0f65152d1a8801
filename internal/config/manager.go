package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"gopkg.in/yaml.v3"
)

// 全局验证器实例，用于配置验证
var validate = validator.New()

// builtinProfiles 内置限流配置名称，配置文件中的引用可以直接使用
var builtinProfiles = []string{
	constants.ProfileDefault,
	constants.ProfileAuth,
	constants.ProfilePayment,
	constants.ProfileUpload,
	constants.ProfileSearch,
	constants.ProfileB2B,
}

// Manager 代表配置管理器，负责配置文件的加载、验证和管理
type Manager struct {
	config     *Config             // 当前加载的配置实例
	configPath string              // 配置文件的绝对路径
	validator  *validator.Validate // 配置验证器
}

// NewManager 创建新的配置管理器实例
func NewManager() (*Manager, error) {
	// 注册自定义验证器
	if err := validate.RegisterValidation("http_url", validateHTTPURL); err != nil {
		return nil, err
	}

	return &Manager{
		validator: validate,
	}, nil
}

// LoadFromFile 从指定路径加载配置文件并进行验证
// configPath: 配置文件路径
func (m *Manager) LoadFromFile(configPath string) error {
	// 检查文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := m.Load(data); err != nil {
		return err
	}

	m.configPath, _ = filepath.Abs(configPath)
	return nil
}

// Load 从 YAML 内容加载配置，依次执行解析、默认值填充、结构验证和引用验证
// data: YAML 配置内容
func (m *Manager) Load(data []byte) error {
	// 解析 YAML 配置
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// 设置默认值
	m.SetDefaults(&config)

	// 验证配置结构
	if err := m.validator.Struct(&config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 验证引用关系
	if err := m.validateReferences(&config); err != nil {
		return fmt.Errorf("config reference validation failed: %w", err)
	}

	m.config = &config
	return nil
}

// validateReferences 验证配置中的引用关系和条件必填字段
// config: 待验证的配置实例
func (m *Manager) validateReferences(config *Config) error {
	// 内置配置与自定义配置共同组成可引用的名称集合
	profileNames := make(map[string]bool, len(builtinProfiles)+len(config.Limiter.Profiles))
	for _, name := range builtinProfiles {
		profileNames[name] = true
	}
	for _, profile := range config.Limiter.Profiles {
		profileNames[profile.Name] = true
	}

	if !profileNames[config.Limiter.DefaultProfile] {
		return fmt.Errorf("limiter references unknown default profile '%s'", config.Limiter.DefaultProfile)
	}

	for _, route := range config.Limiter.Routes {
		if !profileNames[route.Profile] {
			return fmt.Errorf("route '%s' references unknown profile '%s'", route.Prefix, route.Profile)
		}
	}

	switch config.Store.Type {
	case constants.StoreRedis:
		if config.Store.Redis == nil {
			return fmt.Errorf("store type '%s' requires a redis section", config.Store.Type)
		}
	case constants.StoreSharded:
		if len(config.Store.Shards) == 0 {
			return fmt.Errorf("store type '%s' requires at least one shard", config.Store.Type)
		}
		shardNames := make(map[string]bool, len(config.Store.Shards))
		for _, shard := range config.Store.Shards {
			if shardNames[shard.Name] {
				return fmt.Errorf("duplicate shard name '%s'", shard.Name)
			}
			shardNames[shard.Name] = true
		}
	}

	if config.Limiter.Load.Type == constants.LoadInflight && config.Limiter.Load.Capacity <= 0 {
		return fmt.Errorf("load type '%s' requires a positive capacity", config.Limiter.Load.Type)
	}

	return nil
}

// GetConfig 返回当前加载的配置实例
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetConfigPath 返回当前配置文件的绝对路径
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetDefaults 为配置设置默认值，确保所有必需字段都有合理的默认值
// config: 待设置默认值的配置实例
func (m *Manager) SetDefaults(config *Config) {
	// 设置网关服务默认值
	m.setGatewayDefaults(config)

	// 设置管理服务默认值
	m.setAdminDefaults(config)

	// 设置存储默认值
	m.setStoreDefaults(config)

	// 设置限流引擎默认值
	m.setLimiterDefaults(config)

	// 设置身份识别默认值
	m.setIdentityDefaults(config)

	// 设置告警默认值
	if config.Alerts.LogPerSecond == 0 {
		config.Alerts.LogPerSecond = constants.DefaultAlertLogPerSecond
	}
	if config.Alerts.LogBurst == 0 {
		config.Alerts.LogBurst = constants.DefaultAlertLogBurst
	}
}

// setTimeoutDefaults 返回补全了缺省字段的超时配置
func setTimeoutDefaults(timeout *TimeoutConfig) *TimeoutConfig {
	if timeout == nil {
		return &TimeoutConfig{
			Idle:  constants.DefaultIdleTimeout,
			Read:  constants.DefaultReadTimeout,
			Write: constants.DefaultWriteTimeout,
		}
	}
	// 如果Timeout存在但某些字段为0，设置默认值
	if timeout.Idle == 0 {
		timeout.Idle = constants.DefaultIdleTimeout
	}
	if timeout.Read == 0 {
		timeout.Read = constants.DefaultReadTimeout
	}
	if timeout.Write == 0 {
		timeout.Write = constants.DefaultWriteTimeout
	}
	return timeout
}

// setGatewayDefaults 设置网关服务的默认值
func (m *Manager) setGatewayDefaults(config *Config) {
	gateway := &config.Gateway
	if gateway.Name == "" {
		gateway.Name = constants.DefaultGatewayName
	}
	if gateway.Port == 0 {
		gateway.Port = constants.DefaultGatewayPort
	}
	if gateway.Address == "" {
		gateway.Address = constants.DefaultAddress
	}
	if gateway.Upstream.Timeout == 0 {
		gateway.Upstream.Timeout = constants.DefaultUpstreamTimeout
	}
	if gateway.Upstream.MaxIdleConns == 0 {
		gateway.Upstream.MaxIdleConns = constants.DefaultMaxIdleConns
	}
	if gateway.Upstream.MaxIdleConnsPerHost == 0 {
		gateway.Upstream.MaxIdleConnsPerHost = constants.DefaultMaxIdleConnsPerHost
	}
	gateway.Timeout = setTimeoutDefaults(gateway.Timeout)
}

// setAdminDefaults 设置管理服务的默认值
func (m *Manager) setAdminDefaults(config *Config) {
	if config.Admin.Port == 0 {
		config.Admin.Port = constants.DefaultAdminPort
	}
	if config.Admin.Address == "" {
		config.Admin.Address = constants.DefaultAddress
	}
	config.Admin.Timeout = setTimeoutDefaults(config.Admin.Timeout)
}

// setStoreDefaults 设置存储的默认值
func (m *Manager) setStoreDefaults(config *Config) {
	store := &config.Store
	if store.Type == "" {
		store.Type = constants.StoreMemory
	}
	if store.KeyPrefix == "" {
		store.KeyPrefix = constants.DefaultKeyPrefix
	}
	if store.Timeout == 0 {
		store.Timeout = constants.DefaultStoreTimeout
	}
	if store.FailurePolicy == "" {
		store.FailurePolicy = constants.FailureOpen
	}
	if store.FailClosedRetryAfter == 0 {
		store.FailClosedRetryAfter = constants.DefaultFailClosedRetryAfter
	}

	if store.Breaker == nil {
		store.Breaker = &BreakerConfig{}
	}
	if store.Breaker.Threshold == 0 {
		store.Breaker.Threshold = constants.DefaultBreakerThreshold
	}
	if store.Breaker.Cooldown == 0 {
		store.Breaker.Cooldown = constants.DefaultBreakerCooldown
	}
	if store.Breaker.MaxRequests == 0 {
		store.Breaker.MaxRequests = constants.DefaultBreakerMaxRequests
	}
	if store.Breaker.Interval == 0 {
		store.Breaker.Interval = constants.DefaultBreakerInterval
	}

	if store.Memory == nil {
		store.Memory = &MemoryConfig{}
	}
	if store.Memory.Shards == 0 {
		store.Memory.Shards = constants.DefaultMemoryShards
	}
	if store.Memory.CleanupInterval == 0 {
		store.Memory.CleanupInterval = constants.DefaultMemoryCleanupInterval
	}

	if store.Redis != nil {
		setRedisDefaults(store.Redis)
	}
	for i := range store.Shards {
		setRedisDefaults(&store.Shards[i].Redis)
	}
}

// setRedisDefaults 设置 Redis 连接的默认值
func setRedisDefaults(redis *RedisConfig) {
	if redis.Address == "" {
		redis.Address = constants.DefaultRedisAddress
	}
	if redis.PoolSize == 0 {
		redis.PoolSize = constants.DefaultRedisPoolSize
	}
}

// setLimiterDefaults 设置限流引擎的默认值
func (m *Manager) setLimiterDefaults(config *Config) {
	limiter := &config.Limiter
	if limiter.DefaultProfile == "" {
		limiter.DefaultProfile = constants.ProfileDefault
	}
	if limiter.Bypass.Roles == nil {
		limiter.Bypass.Roles = []string{constants.DefaultPrivilegedRole}
	}
	if limiter.Bypass.Paths == nil {
		limiter.Bypass.Paths = []string{constants.DefaultExemptPath}
	}

	adaptive := &limiter.Adaptive
	if adaptive.ErrorRateThreshold == 0 {
		adaptive.ErrorRateThreshold = constants.DefaultErrorRateThreshold
	}
	if adaptive.ErrorRatePenalty == 0 {
		adaptive.ErrorRatePenalty = constants.DefaultErrorRatePenalty
	}
	if adaptive.LoadThreshold == 0 {
		adaptive.LoadThreshold = constants.DefaultLoadThreshold
	}
	if adaptive.LoadPenalty == 0 {
		adaptive.LoadPenalty = constants.DefaultLoadPenalty
	}
	if adaptive.SuspiciousPenalty == 0 {
		adaptive.SuspiciousPenalty = constants.DefaultSuspiciousPenalty
	}
	if adaptive.SuspiciousErrorRate == 0 {
		adaptive.SuspiciousErrorRate = constants.DefaultSuspiciousErrorRate
	}
	if adaptive.SuspiciousRequests == 0 {
		adaptive.SuspiciousRequests = constants.DefaultSuspiciousRequests
	}
	if adaptive.AnalyticsWindow == 0 {
		adaptive.AnalyticsWindow = constants.DefaultAnalyticsWindow
	}

	load := &limiter.Load
	if load.Type == "" {
		load.Type = constants.LoadStore
	}
	if load.Refresh == 0 {
		load.Refresh = constants.DefaultLoadRefresh
	}
	if load.Type == constants.LoadInflight && load.Capacity == 0 {
		load.Capacity = constants.DefaultInflightCapacity
	}
}

// setIdentityDefaults 设置身份识别的默认值
func (m *Manager) setIdentityDefaults(config *Config) {
	identity := &config.Identity
	if identity.APIKeyHeader == "" {
		identity.APIKeyHeader = constants.HeaderAPIKeyID
	}
	if identity.UserHeader == "" {
		identity.UserHeader = constants.HeaderUserID
	}
	if identity.RoleHeader == "" {
		identity.RoleHeader = constants.HeaderUserRole
	}
	if identity.FingerprintHeaders == nil {
		identity.FingerprintHeaders = []string{constants.HeaderUserAgent}
	}
	if identity.JWT != nil {
		if identity.JWT.RoleClaim == "" {
			identity.JWT.RoleClaim = constants.DefaultJWTRoleClaim
		}
		if identity.JWT.APIKeyClaim == "" {
			identity.JWT.APIKeyClaim = constants.DefaultJWTAPIKeyClaim
		}
	}
}

// validateHTTPURL 验证URL必须使用HTTP或HTTPS协议
func validateHTTPURL(fl validator.FieldLevel) bool {
	urlStr := fl.Field().String()
	if urlStr == "" {
		return false // 空URL无效
	}

	// 解析URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false // URL格式无效
	}

	// 检查协议必须是http或https（大小写不敏感）
	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	// 检查必须包含有效的host
	return parsedURL.Host != ""
}
