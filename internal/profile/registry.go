// Package profile 提供命名限流配置的注册表和路径路由表
package profile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

var (
	// ErrInvalidProfile 无效限流配置错误
	ErrInvalidProfile = errors.New(constants.ErrMsgInvalidProfile)
	// ErrUnknownProfile 未知限流配置错误
	ErrUnknownProfile = errors.New(constants.ErrMsgUnknownProfile)
)

// LimiterProfile 代表一个命名限流配置，加载后不可变
type LimiterProfile struct {
	Name                string  `json:"name"`
	RequestsPerMinute   int     `json:"requests_per_minute"`
	RequestsPerHour     int     `json:"requests_per_hour"`
	BurstAllowance      int     `json:"burst_allowance"`
	AdaptiveEnabled     bool    `json:"adaptive_enabled"`
	BucketSize          int     `json:"bucket_size"`
	RefillRatePerSecond float64 `json:"refill_rate_per_second"`
}

// Validate 检查配置数值是否满足算法前提
func (p LimiterProfile) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	case p.RequestsPerMinute < 1:
		return fmt.Errorf("%w: %s requests per minute must be >= 1", ErrInvalidProfile, p.Name)
	case p.RequestsPerHour < 0:
		return fmt.Errorf("%w: %s requests per hour must be >= 0", ErrInvalidProfile, p.Name)
	case p.BucketSize < 1:
		return fmt.Errorf("%w: %s bucket size must be >= 1", ErrInvalidProfile, p.Name)
	case p.RefillRatePerSecond <= 0:
		return fmt.Errorf("%w: %s refill rate must be > 0", ErrInvalidProfile, p.Name)
	}
	return nil
}

// Builtin 返回内置限流配置表
func Builtin() []LimiterProfile {
	return []LimiterProfile{
		{Name: constants.ProfileDefault, RequestsPerMinute: 60, RequestsPerHour: 1000, BurstAllowance: 10, AdaptiveEnabled: true, BucketSize: 100, RefillRatePerSecond: 1},
		{Name: constants.ProfileAuth, RequestsPerMinute: 5, RequestsPerHour: 50, BurstAllowance: 2, AdaptiveEnabled: false, BucketSize: 10, RefillRatePerSecond: 0.1},
		{Name: constants.ProfilePayment, RequestsPerMinute: 10, RequestsPerHour: 100, BurstAllowance: 3, AdaptiveEnabled: true, BucketSize: 20, RefillRatePerSecond: 0.2},
		{Name: constants.ProfileUpload, RequestsPerMinute: 5, RequestsPerHour: 50, BurstAllowance: 1, AdaptiveEnabled: false, BucketSize: 10, RefillRatePerSecond: 0.1},
		{Name: constants.ProfileSearch, RequestsPerMinute: 30, RequestsPerHour: 500, BurstAllowance: 5, AdaptiveEnabled: true, BucketSize: 50, RefillRatePerSecond: 0.5},
		{Name: constants.ProfileB2B, RequestsPerMinute: 120, RequestsPerHour: 2000, BurstAllowance: 20, AdaptiveEnabled: true, BucketSize: 200, RefillRatePerSecond: 2},
	}
}

// Registry 代表只读的限流配置注册表，并发安全
type Registry struct {
	profiles map[string]LimiterProfile
	fallback string
	names    []string // 按字母排序
}

// NewRegistry 创建注册表，overrides 覆盖同名内置配置或新增配置
// fallback: 未知名称回落的配置名称，为空时使用 default
func NewRegistry(fallback string, overrides ...LimiterProfile) (*Registry, error) {
	if fallback == "" {
		fallback = constants.ProfileDefault
	}

	profiles := make(map[string]LimiterProfile, len(overrides)+6)
	for _, p := range Builtin() {
		profiles[p.Name] = p
	}
	for _, p := range overrides {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[p.Name] = p
	}

	if _, ok := profiles[fallback]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, fallback)
	}

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{profiles: profiles, fallback: fallback, names: names}, nil
}

// NewRegistryFromConfig 根据限流配置创建注册表
func NewRegistryFromConfig(cfg *config.LimiterConfig) (*Registry, error) {
	overrides := make([]LimiterProfile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		overrides = append(overrides, LimiterProfile{
			Name:                p.Name,
			RequestsPerMinute:   p.RequestsPerMinute,
			RequestsPerHour:     p.RequestsPerHour,
			BurstAllowance:      p.BurstAllowance,
			AdaptiveEnabled:     p.AdaptiveEnabled,
			BucketSize:          p.BucketSize,
			RefillRatePerSecond: p.RefillRatePerSecond,
		})
	}
	return NewRegistry(cfg.DefaultProfile, overrides...)
}

// Resolve 按名称查找配置，未知名称静默回落到默认配置
func (r *Registry) Resolve(name string) LimiterProfile {
	if p, ok := r.profiles[name]; ok {
		return p
	}
	return r.profiles[r.fallback]
}

// Lookup 按名称精确查找配置
func (r *Registry) Lookup(name string) (LimiterProfile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Default 返回回落配置的名称
func (r *Registry) Default() string {
	return r.fallback
}

// Names 返回按字母排序的配置名称
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All 返回按名称排序的全部配置
func (r *Registry) All() []LimiterProfile {
	names := r.Names()
	out := make([]LimiterProfile, 0, len(names))
	for _, name := range names {
		out = append(out, r.profiles[name])
	}
	return out
}
