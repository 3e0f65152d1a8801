package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/shengyanli1982/gs"
	"github.com/shengyanli1982/law"
	"github.com/shengyanli1982/orbit/utils/log"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/server"
)

// Version 通过 ldflags 在编译时设置
var Version = constants.DefaultVersion

const ASCII_LOGO = `
████████╗██╗  ██╗██████╗  ██████╗ ████████╗████████╗██╗     ███████╗
╚══██╔══╝██║  ██║██╔══██╗██╔═══██╗╚══██╔══╝╚══██╔══╝██║     ██╔════╝
   ██║   ███████║██████╔╝██║   ██║   ██║      ██║   ██║     █████╗
   ██║   ██╔══██║██╔══██╗██║   ██║   ██║      ██║   ██║     ██╔══╝
   ██║   ██║  ██║██║  ██║╚██████╔╝   ██║      ██║   ███████╗███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝    ╚═╝      ╚═╝   ╚══════╝╚══════╝

 ██████╗  █████╗ ████████╗███████╗
██╔════╝ ██╔══██╗╚══██╔══╝██╔════╝
██║  ███╗███████║   ██║   █████╗
██║   ██║██╔══██║   ██║   ██╔══╝
╚██████╔╝██║  ██║   ██║   ███████╗
 ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝
	`

// ServiceContext 服务上下文结构体，用于管理服务所需的所有组件
type ServiceContext struct {
	logger      *logr.Logger      // 日志记录器
	asyncWriter *law.WriteAsyncer // 异步写入器
	config      *config.Config    // 服务配置
	configMgr   *config.Manager   // 配置管理器
	gateway     *server.Server    // 网关服务器
}

// isReleaseMode 判断是否为发布模式
// releaseMode: 是否为发布模式
func isReleaseMode(releaseMode bool) bool {
	return releaseMode || gin.Mode() == gin.ReleaseMode
}

// initLogger 初始化日志系统
// releaseMode: 是否为发布模式
// jsonOutput: 是否输出 JSON 格式日志
func initLogger(releaseMode, jsonOutput bool) (*logr.Logger, *law.WriteAsyncer) {
	var (
		logger      *logr.Logger
		asyncWriter *law.WriteAsyncer
	)

	// 在发布模式下使用异步写入器
	if isReleaseMode(releaseMode) {
		asyncWriter = law.NewWriteAsyncer(os.Stdout, law.DefaultConfig())
		if jsonOutput {
			logger = log.NewZapLogger(zapcore.AddSync(asyncWriter), true).GetLogrLogger()
		} else {
			logger = log.NewLogrLogger(asyncWriter, true).GetLogrLogger()
		}
		return logger, asyncWriter
	}

	// 开发模式直接使用标准输出
	logger = log.NewLogrLogger(os.Stdout, false).GetLogrLogger()
	return logger, nil
}

// initConfig 初始化配置管理器
// configPath: 配置文件路径
func initConfig(configPath string) (*config.Manager, *config.Config, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create configuration manager: %w", err)
	}
	if err := configManager.LoadFromFile(configPath); err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return configManager, configManager.GetConfig(), nil
}

// setupGracefulShutdown 设置优雅关闭机制
// ctx: 服务上下文
// releaseMode: 是否为发布模式
func setupGracefulShutdown(ctx *ServiceContext, releaseMode bool) {
	// 创建服务器终止信号
	serverSignal := gs.NewTerminateSignal()
	serverSignal.RegisterCancelHandles(ctx.gateway.Stop)

	// 创建写入器终止信号
	writerSignal := gs.NewTerminateSignal()
	if isReleaseMode(releaseMode) && ctx.asyncWriter != nil {
		writerSignal.RegisterCancelHandles(ctx.asyncWriter.Stop)
	}

	// 等待所有终止信号完成
	gs.WaitForSync(serverSignal, writerSignal)
}

func main() {
	var (
		configPath  string
		releaseMode bool
		jsonOutput  bool
	)

	cmd := cobra.Command{
		Use:     "throttlegate",
		Version: Version,
		Short:   "ThrottleGate is an adaptive rate-limiting gateway",
		Long: `ThrottleGate is an HTTP gateway that protects a single upstream service with
adaptive, multi-strategy rate limiting.

Core Features:
- Sliding window limits per minute with optional hourly quotas
- Token bucket burst control
- Adaptive limits driven by caller error rate, suspicious activity and system load
- Named limiter profiles selected by path prefix
- Memory, Redis and consistent-hashed Redis shard stores
- Fail-open or fail-closed policy when the store is unavailable
- Sampled rejection alerts and Prometheus metrics
- Graceful shutdown support
- JSON/Plain log output support

Author: shengyanli1982
Repository: https://github.com/shengyanli1982/throttlegate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := &ServiceContext{}

			// 初始化日志系统
			ctx.logger, ctx.asyncWriter = initLogger(releaseMode, jsonOutput)

			// 加载服务配置
			var err error
			ctx.configMgr, ctx.config, err = initConfig(configPath)
			if err != nil {
				ctx.logger.Error(err, "Failed to load service configuration")
				return err
			}

			ctx.logger.Info("Configuration loaded successfully", "path", ctx.configMgr.GetConfigPath())

			// 装配运行时组件与服务器
			ctx.gateway, err = server.NewServer(!releaseMode, ctx.logger, ctx.config)
			if err != nil {
				ctx.logger.Error(err, "Failed to create gateway server")
				return err
			}

			// 输出 ASCII 标志（只有在初始化成功后才显示）
			fmt.Println(ASCII_LOGO)

			ctx.gateway.Start()
			ctx.logger.Info("ThrottleGate started successfully",
				"gateway", ctx.gateway.GetGatewayServer().GetEndpoint(),
				"admin", ctx.gateway.GetAdminServer().GetEndpoint())

			// 设置优雅关闭机制
			setupGracefulShutdown(ctx, releaseMode)

			ctx.logger.Info("ThrottleGate stopped")
			return nil
		},
	}

	// 注册命令行参数
	cmd.Flags().StringVarP(&configPath, constants.FlagConfig, constants.FlagConfigShort, constants.DefaultConfigPath, "Path to configuration file")
	cmd.Flags().BoolVarP(&jsonOutput, constants.FlagJSON, constants.FlagJSONShort, false, "Enable JSON format logging output (only effective in release mode)")
	cmd.Flags().BoolVarP(&releaseMode, constants.FlagRelease, constants.FlagReleaseShort, false, "Enable release mode for performance optimizations and async logging")

	cmd.AddCommand(newCheckCommand())

	if err := cmd.Execute(); err != nil {
		fmt.Printf("Failed to execute command: %v\n", err)
		os.Exit(constants.ExitFailure)
	}
}
