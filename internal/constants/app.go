// Package constants 定义网关各组件共用的常量
package constants

// DefaultVersion 未通过 ldflags 注入时的版本号
const DefaultVersion = "0.0.0"

const (
	// UserAgent 转发到上游时缺省的用户代理
	UserAgent = "ThrottleGate/1.0"

	// DefaultConfigPath 默认配置文件路径
	DefaultConfigPath = "./config.yaml"

	// ExitFailure 启动失败时的退出码
	ExitFailure = -1
)

// 指标相关常量
const (
	MetricsCollectorGlobal = "global"       // 共享收集器名称
	MetricsNamespace       = "throttlegate" // 指标命名空间
)
