package identity

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// Resolver 代表限流标识解析器
// 优先级：API Key 标识 > 用户标识 > 客户端地址加指纹
type Resolver struct {
	fingerprintHeaders []string
}

// NewResolver 创建标识解析器
// fingerprintHeaders: 参与指纹计算的头部，为空时使用 User-Agent
func NewResolver(fingerprintHeaders []string) *Resolver {
	if len(fingerprintHeaders) == 0 {
		fingerprintHeaders = []string{constants.HeaderUserAgent}
	}
	return &Resolver{fingerprintHeaders: fingerprintHeaders}
}

// Identify 返回请求的限流标识，永不失败
func (r *Resolver) Identify(req *Request) string {
	if req.APIKeyID != "" {
		return constants.IdentifierAPIKey + req.APIKeyID
	}
	if req.UserID != "" {
		return constants.IdentifierUser + req.UserID
	}
	return constants.IdentifierIP + req.ClientIP + constants.IdentifierFingerprint + r.Fingerprint(req)
}

// Fingerprint 返回请求头部的短摘要，缺失的头部按空字符串参与计算
func (r *Resolver) Fingerprint(req *Request) string {
	var b strings.Builder
	for i, name := range r.fingerprintHeaders {
		if i > 0 {
			b.WriteByte('\n')
		}
		if req.Headers != nil {
			b.WriteString(req.Headers.Get(name))
		}
	}

	digest := strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
	// 补齐前导零，保证长度固定
	if len(digest) < 16 {
		digest = strings.Repeat("0", 16-len(digest)) + digest
	}
	return digest[:constants.FingerprintLength]
}
