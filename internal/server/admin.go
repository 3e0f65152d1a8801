package server

import (
	"github.com/go-logr/logr"
	"github.com/shengyanli1982/orbit"
	"github.com/shengyanli1982/throttlegate/internal/config"
)

// AdminServer 代表管理服务器，提供指标、健康检查和限流状态查询
type AdminServer struct {
	*listener
	service *AdminService
}

// NewAdminServer 创建管理服务器
// debug 模式下挂载 orbit 的调试路由
func NewAdminServer(debug bool, logger *logr.Logger, cfg *config.AdminConfig, rt *Runtime) *AdminServer {
	engineCfg := newEngineConfig(logger, cfg.Address, cfg.Port, cfg.Timeout)
	opts := orbit.DebugOptions()
	if !debug {
		opts = orbit.ReleaseOptions()
		engineCfg.WithRelease()
	}

	engine := orbit.NewEngine(engineCfg, opts)
	svc := NewAdminService(rt, logger)
	engine.RegisterService(svc)

	return &AdminServer{
		listener: newListener("admin", cfg.Address, cfg.Port, engine, svc, logger),
		service:  svc,
	}
}
