package identity

import "strings"

// Bypass 代表限流豁免判定：特权角色或豁免路径的请求跳过整个限流流程
type Bypass struct {
	roles map[string]struct{}
	paths []string
}

// NewBypass 创建豁免判定
// roles: 特权角色列表
// paths: 路径关键字列表，请求路径包含任一关键字即豁免
func NewBypass(roles, paths []string) *Bypass {
	b := &Bypass{
		roles: make(map[string]struct{}, len(roles)),
		paths: make([]string, 0, len(paths)),
	}
	for _, role := range roles {
		if role != "" {
			b.roles[role] = struct{}{}
		}
	}
	for _, path := range paths {
		// 空关键字会匹配所有路径，忽略
		if path != "" {
			b.paths = append(b.paths, path)
		}
	}
	return b
}

// Exempt 判断请求是否豁免限流
func (b *Bypass) Exempt(req *Request) bool {
	if b.ExemptRole(req.Role) {
		return true
	}
	for _, path := range b.paths {
		if strings.Contains(req.Path, path) {
			return true
		}
	}
	return false
}

// ExemptRole 判断角色是否为特权角色
func (b *Bypass) ExemptRole(role string) bool {
	if role == "" {
		return false
	}
	_, ok := b.roles[role]
	return ok
}
