package ratelimit

import (
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// keyspace 负责生成带前缀的存储键
type keyspace struct {
	prefix string
}

// window 滑动窗口键：sliding_window:<namespace>:<identifier>
func (k keyspace) window(namespace, identifier string) string {
	return k.prefix + constants.KeySlidingWindow + namespace + ":" + identifier
}

// hourly 小时配额键：hourly_quota:<namespace>:<identifier>:<YYYYMMDDHH>
func (k keyspace) hourly(namespace, identifier string, now time.Time) string {
	return k.prefix + constants.KeyHourlyQuota + namespace + ":" + identifier + ":" + now.UTC().Format("2006010215")
}

// bucket 令牌桶键：token_bucket:<namespace>:<identifier>
func (k keyspace) bucket(namespace, identifier string) string {
	return k.prefix + constants.KeyTokenBucket + namespace + ":" + identifier
}

// adaptive 自适应状态键：adaptive:<identifier>
func (k keyspace) adaptive(identifier string) string {
	return k.prefix + constants.KeyAdaptive + identifier
}

// analytics 使用分析键：request_analytics:<identifier>
func (k keyspace) analytics(identifier string) string {
	return k.prefix + constants.KeyAnalytics + identifier
}

// adaptiveIdentifier 自适应策略使用的窗口标识，与基础窗口互不干扰
func adaptiveIdentifier(identifier string) string {
	return identifier + ":" + constants.NamespaceAdaptive
}
