package ratelimit

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/shengyanli1982/throttlegate/internal/identity"
	"github.com/shengyanli1982/throttlegate/internal/profile"
	"github.com/shengyanli1982/throttlegate/internal/response"
)

// outcomeContextKey 求值结果在 gin.Context 中的键
const outcomeContextKey = "throttlegate.outcome"

// Middleware 代表限流中间件，负责请求求值、响应头和拒绝响应
type Middleware struct {
	limiter   *Limiter
	extractor *identity.Extractor
	routes    *profile.RouteTable
	logger    *logr.Logger
}

// NewMiddleware 创建限流中间件
// limiter: 限流器
// extractor: 请求描述提取器
// routes: 路径到限流配置的路由表
func NewMiddleware(limiter *Limiter, extractor *identity.Extractor, routes *profile.RouteTable, logger *logr.Logger) *Middleware {
	if logger == nil {
		discard := logr.Discard()
		logger = &discard
	}
	return &Middleware{
		limiter:   limiter,
		extractor: extractor,
		routes:    routes,
		logger:    logger,
	}
}

// Handler 返回gin中间件函数
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := m.extractor.Extract(c.Request)
		outcome := m.limiter.Evaluate(c.Request.Context(), req, m.routes.Match(req.Path))
		c.Set(outcomeContextKey, outcome)

		headersFor(outcome).Apply(c.Writer.Header())

		if !outcome.Decision.Allowed {
			m.logger.V(1).Info("Request rejected",
				"identifier", outcome.Identifier,
				"profile", outcome.Profile.Name,
				"strategy", outcome.Decision.Strategy,
				"retryAfter", outcome.Decision.RetryAfter)
			response.RateLimited(c, outcome.Decision.Strategy, outcome.Decision.RetryAfter)
			return
		}

		c.Next()

		// 客户端断开不影响使用记录
		m.limiter.Record(context.WithoutCancel(c.Request.Context()), outcome, c.Writer.Status())
	}
}

// OutcomeFrom 读取中间件写入的求值结果
func OutcomeFrom(c *gin.Context) (Outcome, bool) {
	v, ok := c.Get(outcomeContextKey)
	if !ok {
		return Outcome{}, false
	}
	outcome, ok := v.(Outcome)
	return outcome, ok
}

// headersFor 生成响应头，上限、剩余和重置时间始终来自基础滑动窗口决策
func headersFor(outcome Outcome) response.RateLimitHeaders {
	return response.RateLimitHeaders{
		Limit:     outcome.Base.Limit,
		Remaining: outcome.Base.Remaining,
		ResetAt:   outcome.Base.ResetAt,
		Strategy:  outcome.Decision.Strategy,
	}
}
