package identity

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shengyanli1982/throttlegate/internal/config"
	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// ErrInvalidToken 无效 Bearer 令牌错误
var ErrInvalidToken = errors.New(constants.ErrMsgInvalidToken)

// claims 代表从令牌中读取的身份声明
type claims struct {
	userID   string
	apiKeyID string
	role     string
}

// Extractor 代表请求身份提取器，读取 HS256 JWT 声明或认证层写入的可信头部
type Extractor struct {
	apiKeyHeader   string
	userHeader     string
	roleHeader     string
	trustForwarded bool
	trustHeaders   bool
	secret         []byte
	roleClaim      string
	apiKeyClaim    string
	parser         *jwt.Parser
}

// NewExtractor 创建身份提取器
// cfg: 身份识别配置，空字段使用默认头部名称
func NewExtractor(cfg *config.IdentityConfig) *Extractor {
	e := &Extractor{
		apiKeyHeader:   valueOrDefault(cfg.APIKeyHeader, constants.HeaderAPIKeyID),
		userHeader:     valueOrDefault(cfg.UserHeader, constants.HeaderUserID),
		roleHeader:     valueOrDefault(cfg.RoleHeader, constants.HeaderUserRole),
		trustForwarded: cfg.TrustForwarded,
		trustHeaders:   cfg.TrustHeaders,
	}

	if cfg.JWT != nil && cfg.JWT.Secret != "" {
		e.secret = []byte(cfg.JWT.Secret)
		e.roleClaim = valueOrDefault(cfg.JWT.RoleClaim, constants.DefaultJWTRoleClaim)
		e.apiKeyClaim = valueOrDefault(cfg.JWT.APIKeyClaim, constants.DefaultJWTAPIKeyClaim)
		e.parser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}

	return e
}

// Extract 从 HTTP 请求构建请求描述
// 配置了 JWT 时身份只来自验证通过的令牌声明，缺失或无效的令牌视为匿名请求；
// 未配置 JWT 时仅在 trustHeaders 开启时读取身份头部
func (e *Extractor) Extract(req *http.Request) *Request {
	r := &Request{
		Method:   req.Method,
		Path:     req.URL.Path,
		ClientIP: e.clientIP(req),
		Headers:  req.Header,
	}

	if e.parser != nil {
		token, ok := bearerToken(req.Header.Get(constants.HeaderAuthorization))
		if !ok {
			return r
		}
		c, err := e.parseToken(token)
		if err != nil {
			return r
		}
		r.UserID = c.userID
		r.APIKeyID = c.apiKeyID
		r.Role = c.role
		return r
	}

	if e.trustHeaders {
		r.UserID = req.Header.Get(e.userHeader)
		r.APIKeyID = req.Header.Get(e.apiKeyHeader)
		r.Role = req.Header.Get(e.roleHeader)
	}
	return r
}

// parseToken 验证令牌签名并读取身份声明
func (e *Extractor) parseToken(raw string) (claims, error) {
	mapClaims := jwt.MapClaims{}
	token, err := e.parser.ParseWithClaims(raw, mapClaims, func(*jwt.Token) (interface{}, error) {
		return e.secret, nil
	})
	if err != nil || !token.Valid {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, _ := mapClaims.GetSubject()
	return claims{
		userID:   subject,
		apiKeyID: stringClaim(mapClaims, e.apiKeyClaim),
		role:     stringClaim(mapClaims, e.roleClaim),
	}, nil
}

// clientIP 获取客户端地址，仅在信任转发头部时读取 X-Forwarded-For 与 X-Real-IP
func (e *Extractor) clientIP(req *http.Request) string {
	if e.trustForwarded {
		// X-Forwarded-For可能包含多个IP，取第一个
		if xff := req.Header.Get(constants.HeaderXForwardedFor); xff != "" {
			if ip := parseFirstIP(xff); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(req.Header.Get(constants.HeaderXRealIP)); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// parseFirstIP 解析并返回第一个有效的IP地址
func parseFirstIP(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) != nil {
		return first
	}
	return ""
}

// bearerToken 从 Authorization 头部中取出 Bearer 令牌
func bearerToken(header string) (string, bool) {
	if len(header) <= len(constants.BearerPrefix) || !strings.EqualFold(header[:len(constants.BearerPrefix)], constants.BearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(constants.BearerPrefix):]), true
}

// stringClaim 读取字符串类型的声明，其他类型视为空
func stringClaim(c jwt.MapClaims, name string) string {
	if v, ok := c[name].(string); ok {
		return v
	}
	return ""
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
