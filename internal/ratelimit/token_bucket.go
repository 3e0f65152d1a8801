package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/store"
)

// TokenBucket 代表令牌桶策略，令牌按速率连续补充，每个请求消耗一个
type TokenBucket struct {
	store store.Store
	keys  keyspace
	clock Clock
	ttl   time.Duration
}

// NewTokenBucket 创建令牌桶策略
func NewTokenBucket(s store.Store, keyPrefix string, clock Clock) *TokenBucket {
	return &TokenBucket{
		store: s,
		keys:  keyspace{prefix: keyPrefix},
		clock: clock,
		ttl:   constants.StateTTLSeconds * time.Second,
	}
}

// Name 返回策略名称
func (b *TokenBucket) Name() string {
	return constants.StrategyTokenBucket
}

// Decide 使用限流配置的桶容量和补充速率检查令牌桶
func (b *TokenBucket) Decide(ctx context.Context, subject Subject) (Decision, error) {
	p := subject.Profile
	return b.Check(ctx, subject.Identifier, p.Name, p.BucketSize, p.RefillRatePerSecond)
}

// Check 补充令牌后尝试消耗一个，令牌不足一个时拒绝
// 令牌数内部为浮点数，只有返回的剩余数向下取整
func (b *TokenBucket) Check(ctx context.Context, identifier, namespace string, bucketSize int, refillRate float64) (Decision, error) {
	now := b.clock.Now()
	size := float64(bucketSize)

	decision := Decision{
		Limit:    bucketSize,
		Strategy: constants.StrategyTokenBucket,
	}

	err := b.store.Update(ctx, b.keys.bucket(namespace, identifier), b.ttl, func(current []byte) ([]byte, error) {
		state := bucketState{Tokens: size, LastRefill: now.UnixNano()}
		var stored bucketState
		if decodeState(current, &stored) {
			state = stored
		}

		tokens := refill(state, now, size, refillRate)
		if tokens < 1 {
			wait := math.Ceil((1 - tokens) / refillRate)
			decision.Allowed = false
			decision.Remaining = int(math.Floor(tokens))
			decision.RetryAfter = int(wait)
			decision.ResetAt = now.Add(time.Duration(wait) * time.Second)
			return nil, nil
		}

		tokens--
		decision.Allowed = true
		decision.Remaining = int(math.Floor(tokens))
		decision.RetryAfter = 0
		decision.ResetAt = time.Time{}
		return json.Marshal(bucketState{Tokens: tokens, LastRefill: now.UnixNano()})
	})
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// refill 计算补充后的令牌数，结果位于 [0, size]，时钟回拨时不补充
func refill(state bucketState, now time.Time, size, rate float64) float64 {
	elapsed := now.Sub(time.Unix(0, state.LastRefill)).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	tokens := state.Tokens
	if math.IsNaN(tokens) || tokens < 0 {
		tokens = 0
	}
	return math.Min(size, tokens+elapsed*rate)
}
