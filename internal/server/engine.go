package server

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/orbit"
	"github.com/shengyanli1982/throttlegate/internal/config"
)

// runner 代表随引擎启停的服务
type runner interface {
	Run()
	Stop()
}

// listener 代表一个 orbit 引擎及其注册的服务，网关和管理服务器共用这套启停流程
type listener struct {
	role      string
	endpoint  string
	engine    *orbit.Engine
	service   runner
	logger    *logr.Logger
	closeOnce sync.Once
}

// newEngineConfig 根据监听地址和超时配置创建 orbit 引擎配置，超时单位为毫秒
func newEngineConfig(logger *logr.Logger, address string, port int, timeout *config.TimeoutConfig) *orbit.Config {
	cfg := orbit.NewConfig().
		WithLogger(logger).
		WithAddress(address).
		WithPort(uint16(port))

	if timeout != nil {
		cfg = cfg.WithHttpIdleTimeout(uint32(timeout.Idle)).
			WithHttpReadHeaderTimeout(uint32(timeout.Read)).
			WithHttpReadTimeout(uint32(timeout.Read)).
			WithHttpWriteTimeout(uint32(timeout.Write))
	}
	return cfg
}

func newListener(role, address string, port int, engine *orbit.Engine, svc runner, logger *logr.Logger) *listener {
	return &listener{
		role:     role,
		endpoint: fmt.Sprintf("%s:%d", address, port),
		engine:   engine,
		service:  svc,
		logger:   logger,
	}
}

// Start 启动服务与引擎，重复启动只记录错误
func (l *listener) Start() {
	if l.engine.IsRunning() {
		l.logger.Error(ErrServerAlreadyStarted, "Server is already started", "role", l.role, "endpoint", l.endpoint)
		return
	}

	l.logger.Info("Starting server", "role", l.role, "endpoint", l.endpoint)

	l.service.Run()
	l.engine.Run()
	l.closeOnce = sync.Once{}

	l.logger.Info("Server started", "role", l.role, "endpoint", l.endpoint)
}

// Stop 停止引擎后停止服务，多次调用只生效一次
func (l *listener) Stop() {
	if !l.engine.IsRunning() {
		l.logger.V(1).Info("Server is not running", "role", l.role)
		return
	}

	l.closeOnce.Do(func() {
		l.logger.Info("Stopping server", "role", l.role, "endpoint", l.endpoint)
		l.engine.Stop()
		l.service.Stop()
		l.logger.Info("Server stopped", "role", l.role)
	})
}

// IsRunning 检查引擎是否正在运行
func (l *listener) IsRunning() bool {
	return l.engine.IsRunning()
}

// GetEndpoint 获取监听地址
func (l *listener) GetEndpoint() string {
	return l.endpoint
}
