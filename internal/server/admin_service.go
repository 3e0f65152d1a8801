package server

import (
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shengyanli1982/throttlegate/internal/load"
	"github.com/shengyanli1982/throttlegate/internal/metrics"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/response"
)

const (
	// defaultPageSize 配置列表默认分页大小
	defaultPageSize = 20
)

// pageQuery 代表分页查询参数
type pageQuery struct {
	Page int64 `form:"page" binding:"omitempty,min=1"`
	Size int64 `form:"size" binding:"omitempty,min=1,max=100"`
	Desc bool  `form:"desc"`
}

// loadRequest 代表发布系统负载的请求体
type loadRequest struct {
	Load *float64 `json:"load" binding:"required"`
}

// AdminService 代表管理服务，提供指标、健康检查和限流状态查询
// 运行时组件由 Runtime 提供，注册后只读
type AdminService struct {
	mu              sync.RWMutex
	runtime         *Runtime
	logger          *logr.Logger
	metricsRegistry *metrics.MetricsRegistry
	startTime       time.Time
	running         bool
}

// NewAdminService 创建新的管理服务实例
// rt: 共享运行时组件
// logger: 日志记录器
func NewAdminService(rt *Runtime, logger *logr.Logger) *AdminService {
	return &AdminService{
		runtime:         rt,
		logger:          logger,
		metricsRegistry: metrics.GetGlobalRegistry(),
		startTime:       time.Now(),
	}
}

// RegisterGroup 注册路由组和处理器
func (s *AdminService) RegisterGroup(g *gin.RouterGroup) {
	// 统一指标端点
	g.GET("/metrics", s.handleMetrics)

	api := g.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/profiles", s.handleProfiles)
	api.GET("/profiles/:name", s.handleProfile)
	api.GET("/usage/:identifier", s.handleUsage)
	api.GET("/load", s.handleGetLoad)
	api.PUT("/load", s.handleSetLoad)
}

// Run 启动管理服务
func (s *AdminService) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.logger.Info("Admin service started")
}

// Stop 停止管理服务
func (s *AdminService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	s.logger.Info("Admin service stopped")
}

// IsRunning 检查服务是否运行中
func (s *AdminService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// handleMetrics 以 Prometheus 格式输出全局注册器中的指标
func (s *AdminService) handleMetrics(c *gin.Context) {
	registry := s.metricsRegistry.GetRegistry()
	if registry == nil {
		response.Error(response.CodeInternalError, "metrics registry not initialized").JSON(c, http.StatusInternalServerError)
		return
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	handler.ServeHTTP(c.Writer, c.Request)
}

// handleHealth 检查存储是否可用
func (s *AdminService) handleHealth(c *gin.Context) {
	st := s.runtime.Store
	if err := st.Ping(c.Request.Context()); err != nil {
		s.logger.V(1).Info("Store health check failed", "error", err.Error())
		response.Error(response.CodeStoreUnavailable, "backing store unavailable").
			WithDetail(gin.H{"store": st.Type(), "breaker": st.BreakerState(), "error": err.Error()}).
			JSON(c, http.StatusServiceUnavailable)
		return
	}

	response.OK(c, gin.H{
		"status":  "ok",
		"store":   st.Type(),
		"breaker": st.BreakerState(),
	})
}

// handleStatus 返回运行时状态
func (s *AdminService) handleStatus(c *gin.Context) {
	rt := s.runtime
	loadValue, err := rt.Load.Load(c.Request.Context())
	if err != nil {
		loadValue = 0
	}

	response.OK(c, gin.H{
		"uptime":         time.Since(s.startTime).String(),
		"gateway":        rt.Config.Gateway.Name,
		"upstream":       rt.Config.Gateway.Upstream.URL,
		"store":          rt.Store.Type(),
		"breaker":        rt.Store.BreakerState(),
		"failurePolicy":  rt.Config.Store.FailurePolicy,
		"defaultProfile": rt.Registry.Default(),
		"load":           gin.H{"type": rt.Load.Type(), "value": loadValue},
		"inflight":       rt.Inflight.Current(),
		"alertsDropped":  rt.Alerts.Dropped(),
		"runtime": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory":     getMemoryStats(),
		},
	})
}

// handleProfiles 分页返回生效的限流配置
func (s *AdminService) handleProfiles(c *gin.Context) {
	var query pageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Size == 0 {
		query.Size = defaultPageSize
	}

	all := s.runtime.Registry.All()
	if query.Desc {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}

	start := (query.Page - 1) * query.Size
	end := start + query.Size
	total := int64(len(all))
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	response.Paginated(all[start:end], total, query.Page, query.Size, query.Desc).JSON(c, http.StatusOK)
}

// handleProfile 返回单个限流配置
func (s *AdminService) handleProfile(c *gin.Context) {
	p, ok := s.runtime.Registry.Lookup(c.Param("name"))
	if !ok {
		response.NotFound(c, profile.ErrUnknownProfile.Error())
		return
	}
	response.OK(c, p)
}

// handleUsage 返回标识的使用统计、自适应状态和当前生效上限
// 查询参数 profile 指定限流配置，缺省使用默认配置
func (s *AdminService) handleUsage(c *gin.Context) {
	identifier := c.Param("identifier")
	profileName := c.DefaultQuery("profile", s.runtime.Registry.Default())

	usage, err := s.runtime.Limiter.Usage(c.Request.Context(), identifier, profileName)
	if err != nil {
		s.logger.Error(err, "Failed to read usage", "identifier", identifier)
		response.ServiceUnavailable(c, response.CodeStoreUnavailable, "backing store unavailable")
		return
	}
	response.OK(c, usage)
}

// handleGetLoad 返回当前系统负载
func (s *AdminService) handleGetLoad(c *gin.Context) {
	provider := s.runtime.Load
	value, err := provider.Load(c.Request.Context())
	if err != nil {
		response.ServiceUnavailable(c, response.CodeStoreUnavailable, err.Error())
		return
	}
	response.OK(c, gin.H{"type": provider.Type(), "load": value})
}

// handleSetLoad 发布新的系统负载，仅 static 和 store 负载来源支持
func (s *AdminService) handleSetLoad(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	publisher, ok := s.runtime.Load.(load.Publisher)
	if !ok {
		response.Error(response.CodeLoadReadOnly, load.ErrNotPublishable.Error()).
			WithDetail(gin.H{"type": s.runtime.Load.Type()}).
			JSON(c, http.StatusConflict)
		return
	}

	if err := publisher.Publish(c.Request.Context(), *req.Load); err != nil {
		if errors.Is(err, load.ErrInvalidLoad) {
			response.BadRequest(c, err.Error())
			return
		}
		s.logger.Error(err, "Failed to publish system load")
		response.ServiceUnavailable(c, response.CodeStoreUnavailable, err.Error())
		return
	}

	s.logger.Info("System load published", "load", *req.Load, "type", s.runtime.Load.Type())
	s.runtime.Collector.RecordSystemLoad(*req.Load)
	response.OK(c, gin.H{"type": s.runtime.Load.Type(), "load": *req.Load})
}

// getMemoryStats 获取内存统计信息
func getMemoryStats() gin.H {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return gin.H{
		"alloc":        m.Alloc,
		"total_alloc":  m.TotalAlloc,
		"sys":          m.Sys,
		"heap_alloc":   m.HeapAlloc,
		"heap_sys":     m.HeapSys,
		"heap_objects": m.HeapObjects,
		"gc_cycles":    m.NumGC,
		"next_gc":      m.NextGC,
	}
}
