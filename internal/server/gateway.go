package server

import (
	"github.com/go-logr/logr"
	"github.com/shengyanli1982/orbit"
	"github.com/shengyanli1982/throttlegate/internal/config"
)

// GatewayServer 代表限流网关服务器，接收客户端请求并转发到受保护的上游
type GatewayServer struct {
	*listener
	name    string
	service *GatewayService
}

// NewGatewayServer 创建网关服务器
// 网关不挂载 orbit 自带的调试与指标路由，全部路径交给转发处理
// logger: 日志记录器
// cfg: 网关配置
// rt: 共享运行时组件
func NewGatewayServer(logger *logr.Logger, cfg *config.GatewayConfig, rt *Runtime) (*GatewayServer, error) {
	svc, err := NewGatewayService(cfg, rt, logger)
	if err != nil {
		return nil, err
	}

	engine := orbit.NewEngine(newEngineConfig(logger, cfg.Address, cfg.Port, cfg.Timeout), orbit.EmptyOptions())
	engine.RegisterService(svc)

	return &GatewayServer{
		listener: newListener("gateway:"+cfg.Name, cfg.Address, cfg.Port, engine, svc, logger),
		name:     cfg.Name,
		service:  svc,
	}, nil
}

// GetService 获取网关服务实例
func (s *GatewayServer) GetService() *GatewayService {
	return s.service
}
