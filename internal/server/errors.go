package server

import (
	"errors"

	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// 服务器相关错误定义
var (
	// 服务器状态错误
	ErrServerAlreadyStarted = errors.New(constants.ErrMsgServerAlreadyStarted)

	// 转发请求错误
	ErrRequestBodyTooLarge = errors.New(constants.ErrMsgRequestBodyTooLarge)
)
