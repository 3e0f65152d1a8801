package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

const (
	// RateLimitError 限流拒绝响应的错误标识
	RateLimitError = "Rate limit exceeded"

	// RateLimitMessage 限流拒绝响应的提示文本
	RateLimitMessage = "Too many requests. Please try again later."
)

// RateLimitBody 代表限流拒绝的响应体
type RateLimitBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Strategy   string `json:"strategy"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimitHeaders 代表附加到响应上的限流透明度头部
type RateLimitHeaders struct {
	Limit     int       // 窗口上限
	Remaining int       // 窗口剩余
	ResetAt   time.Time // 窗口重置时间，零值时不输出
	Strategy  string    // 决策策略，空值时不输出
}

// Apply 将限流头部写入 header
func (h RateLimitHeaders) Apply(header http.Header) {
	header.Set(constants.HeaderRateLimitLimit, strconv.Itoa(h.Limit))
	header.Set(constants.HeaderRateLimitRemaining, strconv.Itoa(h.Remaining))
	if !h.ResetAt.IsZero() {
		header.Set(constants.HeaderRateLimitReset, strconv.FormatInt(h.ResetAt.Unix(), 10))
	}
	if h.Strategy != "" {
		header.Set(constants.HeaderRateLimitStrategy, h.Strategy)
	}
}

// RateLimited 返回限流拒绝响应（HTTP 429），并设置 Retry-After 头部
// strategy: 拒绝请求的策略名称
// retryAfter: 建议重试秒数
func RateLimited(c *gin.Context, strategy string, retryAfter int) {
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitBody{
		Error:      RateLimitError,
		Message:    RateLimitMessage,
		Strategy:   strategy,
		RetryAfter: retryAfter,
	})
}
