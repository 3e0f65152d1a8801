// Package store 提供限流状态所需的键值存储能力：带过期的读写、原子自增和原子读改写
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
)

// 存储相关错误定义
var (
	// ErrUnavailable 存储不可用（连接失败、超时或熔断）
	ErrUnavailable = errors.New(constants.ErrMsgStoreUnavailable)
	// ErrConflict 原子更新在重试上限内仍发生并发冲突
	ErrConflict = errors.New(constants.ErrMsgStoreConflict)
	// ErrClosed 存储已关闭
	ErrClosed = errors.New(constants.ErrMsgStoreClosed)
	// ErrNilStore 空存储
	ErrNilStore = errors.New(constants.ErrMsgNilStore)
	// ErrUnknownType 未知存储类型
	ErrUnknownType = errors.New(constants.ErrMsgUnknownStoreType)
	// ErrEmptyShards 空分片列表
	ErrEmptyShards = errors.New(constants.ErrMsgEmptyShards)
)

// UpdateFunc 代表原子读改写的变换函数
// current 为当前值，键不存在或已过期时为 nil；返回 nil 表示不写入
// 函数可能因并发冲突被重复调用，不能有外部副作用
type UpdateFunc func(current []byte) (next []byte, err error)

// Store 代表限流状态的键值存储接口
type Store interface {
	// Get 读取键值，键不存在时返回 nil, nil
	Get(ctx context.Context, key string) ([]byte, error)

	// Put 写入键值并设置过期时间
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Increment 原子自增计数器并返回新值，过期时间只在计数器创建时设置
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Update 对单个键执行原子读改写，写入时刷新过期时间
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Ping 检查存储是否可用
	Ping(ctx context.Context) error

	// Close 关闭存储并释放资源
	Close() error

	// Type 获取存储类型
	Type() string
}
