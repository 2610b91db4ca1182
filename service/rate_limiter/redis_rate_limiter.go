/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的分布式节流器，多个服务副本共用同一个接口密钥时保证全局调用速率
 * @architecture 工具层 - 提供分布式限流能力
 * @stateFlow 计算窗口Key -> Lua原子计数 -> 超限则等待窗口重置后重试
 * @rules
 *   - 使用Redis INCR和EXPIRE实现固定窗口计数，窗口按 Unix 秒对齐
 *   - 只保证每个窗口内的调用总数：窗口开始时可连续放行 MaxRequests 次，
 *     跨窗口边界的两次调用间隔可能小于配置的间隔。需要严格最小间隔时使用 interval 模式
 * @dependencies github.com/go-redis/redis/v8
 * @refs pacer.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// 原子性窗口计数脚本：返回 {是否允许, 当前计数, 上限, 剩余TTL}
const windowScript = `
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	if current >= max_requests then
		local ttl = redis.call('TTL', key)
		if ttl == -1 then
			ttl = window
		end
		return {0, current, max_requests, ttl}
	end

	local new_count = redis.call('INCR', key)
	if new_count == 1 then
		redis.call('EXPIRE', key, window)
	end

	local ttl = redis.call('TTL', key)
	if ttl == -1 then
		ttl = window
	end

	return {1, new_count, max_requests, ttl}
`

// RedisPacerConfig Redis节流器配置
type RedisPacerConfig struct {
	Addr          string
	Password      string
	DB            int
	Key           string // 同一上游接口密钥共享同一个Key
	MaxRequests   int    // 每个窗口允许的调用数
	WindowSeconds int    // 窗口长度（秒）
	PollInterval  time.Duration
}

// WindowResult 单次窗口检查结果
type WindowResult struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
}

// RedisPacer Redis分布式节流器
type RedisPacer struct {
	client *redis.Client
	config RedisPacerConfig
}

// NewRedisPacer 创建Redis节流器并测试连接
func NewRedisPacer(config RedisPacerConfig) (*RedisPacer, error) {
	if config.MaxRequests <= 0 {
		return nil, fmt.Errorf("窗口调用上限必须大于0")
	}
	if config.WindowSeconds <= 0 {
		config.WindowSeconds = 1
	}
	if config.Key == "" {
		config.Key = "default"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 50 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	slog.Info("Redis节流器初始化成功",
		"redis_addr", config.Addr,
		"key", config.Key,
		"max_requests", config.MaxRequests,
		"window_seconds", config.WindowSeconds)

	return &RedisPacer{client: client, config: config}, nil
}

// Wait 阻塞直到当前窗口内获得调用名额
func (r *RedisPacer) Wait(ctx context.Context) error {
	for {
		result, err := r.Check(ctx)
		if err != nil {
			return err
		}
		if result.Allowed {
			return nil
		}

		wait := time.Until(time.Unix(result.ResetAt, 0))
		if wait <= 0 {
			wait = r.config.PollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Check 在当前窗口尝试占用一个名额
func (r *RedisPacer) Check(ctx context.Context) (*WindowResult, error) {
	key := r.windowKey(time.Now())

	result, err := r.client.Eval(ctx, windowScript, []string{key}, r.config.MaxRequests, r.config.WindowSeconds).Result()
	if err != nil {
		return nil, fmt.Errorf("节流检查失败: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 4 {
		return nil, fmt.Errorf("节流脚本返回格式错误: %v", result)
	}

	allowed := values[0].(int64) == 1
	current := int(values[1].(int64))
	limit := int(values[2].(int64))
	ttl := int(values[3].(int64))

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	return &WindowResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Second).Unix(),
	}, nil
}

// Reset 清除当前窗口计数（仅用于测试或管理）
func (r *RedisPacer) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.windowKey(time.Now())).Err()
}

// Close 关闭Redis客户端
func (r *RedisPacer) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// windowKey 构造窗口Key
func (r *RedisPacer) windowKey(now time.Time) string {
	window := now.Unix() / int64(r.config.WindowSeconds)
	return fmt.Sprintf("pacer:%s:%d", r.config.Key, window)
}
