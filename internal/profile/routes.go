package profile

import (
	"sort"
	"strings"

	"github.com/shengyanli1982/throttlegate/internal/config"
)

// route 代表一条路径前缀规则
type route struct {
	prefix  string
	profile string
}

// RouteTable 代表路径前缀到限流配置名称的映射，最长前缀优先
type RouteTable struct {
	routes   []route
	fallback string
}

// NewRouteTable 创建路由表
// fallback: 没有前缀命中时使用的配置名称
func NewRouteTable(fallback string, routes []config.RouteConfig) *RouteTable {
	table := &RouteTable{
		routes:   make([]route, 0, len(routes)),
		fallback: fallback,
	}
	for _, r := range routes {
		table.routes = append(table.routes, route{prefix: r.Prefix, profile: r.Profile})
	}

	// 前缀越长越先匹配，长度相同时保持配置顺序
	sort.SliceStable(table.routes, func(i, j int) bool {
		return len(table.routes[i].prefix) > len(table.routes[j].prefix)
	})

	return table
}

// Match 返回请求路径对应的配置名称
func (t *RouteTable) Match(path string) string {
	for _, r := range t.routes {
		if strings.HasPrefix(path, r.prefix) {
			return r.profile
		}
	}
	return t.fallback
}
