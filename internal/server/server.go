// Package server 提供限流网关服务器和管理服务器
package server

import (
	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/config"
)

// Server 代表主服务器，管理网关服务器和管理服务器
type Server struct {
	runtime       *Runtime       // 共享运行时组件
	gatewayServer *GatewayServer // 网关服务器实例
	adminServer   *AdminServer   // 管理服务器实例
	logger        *logr.Logger   // 日志记录器
}

// NewServer 创建新的服务器实例
// debug: 是否启用调试模式
// logger: 日志记录器
// cfg: 已补全默认值的全局配置
func NewServer(debug bool, logger *logr.Logger, cfg *config.Config) (*Server, error) {
	rt, err := NewRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := NewGatewayServer(logger, &cfg.Gateway, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return &Server{
		runtime:       rt,
		gatewayServer: gateway,
		adminServer:   NewAdminServer(debug, logger, &cfg.Admin, rt),
		logger:        logger,
	}, nil
}

// Start 启动所有服务器（网关服务器和管理服务器）
func (s *Server) Start() {
	s.logger.Info("Starting all servers")

	s.gatewayServer.Start()
	s.adminServer.Start()
}

// Stop 停止所有服务器并释放存储连接
func (s *Server) Stop() {
	s.logger.Info("Stopping all servers")

	s.gatewayServer.Stop()
	s.adminServer.Stop()

	if err := s.runtime.Close(); err != nil {
		s.logger.Error(err, "Failed to close store")
	}
}

// GetGatewayServer 获取网关服务器实例
func (s *Server) GetGatewayServer() *GatewayServer {
	return s.gatewayServer
}

// GetAdminServer 获取管理服务器实例
func (s *Server) GetAdminServer() *AdminServer {
	return s.adminServer
}

// GetRuntime 获取共享运行时组件
func (s *Server) GetRuntime() *Runtime {
	return s.runtime
}
