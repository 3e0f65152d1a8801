// Package response 提供网关与管理服务使用的 HTTP 响应格式
//
// 管理接口和网关错误使用基于 httptool.BaseHttpResponse 的统一信封：
//
//	response.OK(c, data)
//	response.Error(CodeBadRequest, "参数错误").WithDetail(details).JSON(c, http.StatusBadRequest)
//	response.Paginated(items, total, pageIndex, pageSize, false).JSON(c, http.StatusOK)
//
// 限流拒绝使用独立的响应体，见 RateLimited。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shengyanli1982/toolkit/pkg/httptool"
)

// 响应代码，按千位分段
const (
	CodeSuccess = 0

	// 客户端错误
	CodeBadRequest = 1000
	CodeNotFound   = 1003
	CodeRateLimit  = 1004

	// 服务端错误
	CodeInternalError      = 2000
	CodeBadGateway         = 2001
	CodeServiceUnavailable = 2002

	// 限流引擎错误
	CodeStoreUnavailable = 3000 // 状态存储不可用
	CodeLoadReadOnly     = 3001 // 负载来源不接受发布
)

// Envelope 代表待输出的响应信封
// base 指向 body 中的通用字段，分页响应时 body 为外层的分页结构
type Envelope struct {
	base *httptool.BaseHttpResponse
	body interface{}
}

func newEnvelope(base *httptool.BaseHttpResponse) *Envelope {
	return &Envelope{base: base, body: base}
}

// Success 创建成功响应
func Success(data interface{}) *Envelope {
	return newEnvelope(&httptool.BaseHttpResponse{Code: CodeSuccess, Data: data})
}

// Error 创建错误响应
// code: 业务错误码
// message: 错误描述
func Error(code int64, message string) *Envelope {
	return newEnvelope(&httptool.BaseHttpResponse{Code: code, ErrorMessage: message})
}

// Paginated 创建分页响应
func Paginated(data interface{}, totalCount, pageIndex, pageSize int64, desc bool) *Envelope {
	page := &httptool.HttpResponsePaginated{
		HttpResponseItemsTotal: httptool.HttpResponseItemsTotal{TotalCount: totalCount},
		HttpQueryPaginated: httptool.HttpQueryPaginated{
			PageIndex: pageIndex,
			PageSize:  pageSize,
			Desc:      desc,
		},
		BaseHttpResponse: httptool.BaseHttpResponse{Code: CodeSuccess, Data: data},
	}
	return &Envelope{base: &page.BaseHttpResponse, body: page}
}

// WithDetail 附加错误详情
func (e *Envelope) WithDetail(detail interface{}) *Envelope {
	e.base.ErrorDetail = detail
	return e
}

// JSON 以指定状态码输出响应
func (e *Envelope) JSON(c *gin.Context, httpStatus int) {
	c.JSON(httpStatus, e.body)
}

// AbortJSON 输出响应并终止后续处理器
func (e *Envelope) AbortJSON(c *gin.Context, httpStatus int) {
	c.AbortWithStatusJSON(httpStatus, e.body)
}

func OK(c *gin.Context, data interface{}) {
	Success(data).JSON(c, http.StatusOK)
}

func BadRequest(c *gin.Context, message string) {
	Error(CodeBadRequest, message).JSON(c, http.StatusBadRequest)
}

func NotFound(c *gin.Context, message string) {
	Error(CodeNotFound, message).JSON(c, http.StatusNotFound)
}

// BadGateway 输出 502 并终止，网关转发失败时使用
func BadGateway(c *gin.Context, message string) {
	Error(CodeBadGateway, message).AbortJSON(c, http.StatusBadGateway)
}

// ServiceUnavailable 输出 503，code 区分不可用的组件
func ServiceUnavailable(c *gin.Context, code int64, message string) {
	Error(code, message).JSON(c, http.StatusServiceUnavailable)
}
