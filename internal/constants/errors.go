package constants

const (
	// Error messages - 错误消息

	// ErrMsgServerAlreadyStarted 服务器已启动错误消息
	ErrMsgServerAlreadyStarted = "server already started"

	// ErrMsgNilRequest 空请求错误消息
	ErrMsgNilRequest = "request cannot be nil"

	// ErrMsgClientClosed 客户端已关闭错误消息
	ErrMsgClientClosed = "client is closed"

	// ErrMsgInvalidUpstream 无效上游地址错误消息
	ErrMsgInvalidUpstream = "invalid upstream url"

	// ErrMsgRequestBodyTooLarge 请求体超出限制错误消息
	ErrMsgRequestBodyTooLarge = "request body too large"

	// ErrMsgStoreUnavailable 存储不可用错误消息
	ErrMsgStoreUnavailable = "backing store unavailable"

	// ErrMsgStoreConflict 存储并发冲突错误消息
	ErrMsgStoreConflict = "backing store update conflict"

	// ErrMsgStoreClosed 存储已关闭错误消息
	ErrMsgStoreClosed = "backing store is closed"

	// ErrMsgNilStore 空存储错误消息
	ErrMsgNilStore = "store cannot be nil"

	// ErrMsgUnknownStoreType 未知存储类型错误消息
	ErrMsgUnknownStoreType = "unknown store type"

	// ErrMsgEmptyShards 空分片列表错误消息
	ErrMsgEmptyShards = "shards cannot be empty"

	// ErrMsgUnknownLoadType 未知负载来源错误消息
	ErrMsgUnknownLoadType = "unknown load provider type"

	// ErrMsgLoadNotPublishable 负载来源不支持发布错误消息
	ErrMsgLoadNotPublishable = "load provider does not accept published values"

	// ErrMsgInvalidLoad 负载值越界错误消息
	ErrMsgInvalidLoad = "load must be within [0, 1]"

	// ErrMsgInvalidProfile 无效限流配置错误消息
	ErrMsgInvalidProfile = "invalid limiter profile"

	// ErrMsgUnknownProfile 未知限流配置错误消息
	ErrMsgUnknownProfile = "unknown limiter profile"

	// ErrMsgInvalidToken 无效令牌错误消息
	ErrMsgInvalidToken = "invalid bearer token"
)

const (
	// Error types for metrics - 指标错误类型

	// ErrorTypeUpstream 上游错误类型
	ErrorTypeUpstream = "upstream_error"

	// ErrorTypeProxy 代理请求构建错误类型
	ErrorTypeProxy = "proxy_error"

	// ErrorTypeRecord 使用记录写入失败
	ErrorTypeRecord = "record_error"
)
