package ratelimit

import (
	"encoding/json"
)

// windowState 滑动窗口内已放行请求的时间戳（Unix 毫秒），按时间升序
type windowState []int64

// bucketState 令牌桶状态
type bucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill int64   `json:"last_refill"` // Unix 纳秒
}

// AdaptiveState 代表标识的行为状态，由 Recorder 写入，自适应策略读取
type AdaptiveState struct {
	ErrorRate          float64 `json:"error_rate"`
	SuspiciousActivity bool    `json:"suspicious_activity"`
	Samples            int64   `json:"samples"`      // 状态所基于的请求数
	WindowStart        int64   `json:"window_start"` // 分析窗口起点（Unix 秒）
}

// newerThan 判断状态是否基于比 other 更新的样本
func (s AdaptiveState) newerThan(other AdaptiveState) bool {
	if s.WindowStart != other.WindowStart {
		return s.WindowStart > other.WindowStart
	}
	return s.Samples > other.Samples
}

// UsageAnalytics 代表标识在分析窗口内的使用统计
type UsageAnalytics struct {
	TotalRequests int64  `json:"total_requests"`
	ErrorCount    int64  `json:"error_count"`
	LastRequestAt int64  `json:"last_request_at"` // Unix 秒
	WindowStart   int64  `json:"window_start"`    // Unix 秒
	LastProfile   string `json:"last_profile,omitempty"`
}

// ErrorRate 返回错误率
func (u UsageAnalytics) ErrorRate() float64 {
	if u.TotalRequests <= 0 {
		return 0
	}
	return float64(u.ErrorCount) / float64(u.TotalRequests)
}

// decodeState 解码状态，空值或损坏的数据视为初始状态
func decodeState(raw []byte, v interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
