/*
 * @module service/rate_limiter/pacer
 * @description 外部接口调用节流器，保证相邻调用之间的最小间隔
 * @architecture 策略模式 - 本地固定间隔 / 本地令牌桶 / Redis分布式窗口
 * @stateFlow 调用前 Wait -> 等待间隔或令牌 -> 发起调用
 * @rules 上游限流是全局的：多个worker必须共享同一个Pacer实例
 * @dependencies golang.org/x/time/rate
 * @refs service/collector, service/aggregator
 */

package rate_limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// 节流模式
const (
	PacerModeInterval = "interval"
	PacerModeToken    = "token"
	PacerModeRedis    = "redis"
)

// Pacer 调用节流接口，Wait 在两次外部调用之间执行
type Pacer interface {
	Wait(ctx context.Context) error
}

// NoopPacer 不做任何等待，用于测试
type NoopPacer struct{}

// Wait 立即返回
func (NoopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

// IntervalPacer 固定间隔节流，无论上次调用耗时多久都完整等待一个间隔
type IntervalPacer struct {
	mu       sync.Mutex
	interval time.Duration
}

// NewIntervalPacer 创建固定间隔节流器
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	return &IntervalPacer{interval: interval}
}

// Wait 等待一个完整间隔；并发调用被串行化，整体速率不超过 1/interval
func (p *IntervalPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval 返回配置的间隔
func (p *IntervalPacer) Interval() time.Duration {
	return p.interval
}

// TokenPacer 令牌桶节流，可在多个worker之间共享
type TokenPacer struct {
	limiter *rate.Limiter
}

// NewTokenPacer 创建令牌桶节流器，每 interval 产生一个令牌
func NewTokenPacer(interval time.Duration, burst int) *TokenPacer {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &TokenPacer{limiter: rate.NewLimiter(limit, burst)}
}

// Wait 等待可用令牌
func (p *TokenPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// PacerOptions 节流器构造参数
type PacerOptions struct {
	Mode     string
	Interval time.Duration
	Burst    int
	Redis    *RedisPacerConfig
}

// NewPacer 根据模式创建节流器
func NewPacer(opts PacerOptions) (Pacer, error) {
	switch opts.Mode {
	case "", PacerModeInterval:
		return NewIntervalPacer(opts.Interval), nil
	case PacerModeToken:
		return NewTokenPacer(opts.Interval, opts.Burst), nil
	case PacerModeRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis节流模式缺少redis配置")
		}
		return NewRedisPacer(*opts.Redis)
	default:
		return nil, fmt.Errorf("不支持的节流模式: %s", opts.Mode)
	}
}
