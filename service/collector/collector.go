/*
 * @module service/collector/collector
 * @description 分页采集器：按页驱动外部分页接口，节流调用，遇错即停并保留已采集数据
 * @architecture 模板方法模式 - 采集循环固定，分页获取能力由调用方注入
 * @stateFlow 第1页 -> 节流等待 -> 第N页 -> 空页/失败/达到上限/取消 -> 返回结果
 * @rules
 *   - 任意一页失败即停止，不重试：上游按顺序分页，中途缺页无法补齐
 *   - 空页视为数据已取完
 *   - 两次调用之间必须经过节流器
 *   - 取消只在页与页之间生效
 * @dependencies service/rate_limiter, service/monitoring
 * @refs service/datasource/registry_fetcher.go
 */

package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/rate_limiter"
)

// 默认参数
const (
	DefaultPageSize      = 1000
	DefaultProgressEvery = 5
)

// PageFetcher 分页获取能力
type PageFetcher interface {
	FetchPage(ctx context.Context, pageNo, pageSize int) ([]models.Record, error)
}

// PageFetchFunc 函数适配器
type PageFetchFunc func(ctx context.Context, pageNo, pageSize int) ([]models.Record, error)

// FetchPage 调用函数本身
func (f PageFetchFunc) FetchPage(ctx context.Context, pageNo, pageSize int) ([]models.Record, error) {
	return f(ctx, pageNo, pageSize)
}

// Options 采集参数
type Options struct {
	MaxPages      int // <=0 表示不限页数，直到空页
	PageSize      int
	ProgressEvery int
	Pacer         rate_limiter.Pacer
	Metrics       *monitoring.MetricsCollector
}

// Result 采集结果
type Result struct {
	Items        []models.Record `json:"-"`
	ItemCount    int             `json:"item_count"`
	PagesFetched int             `json:"pages_fetched"`
	LastPage     int             `json:"last_page"`
	FailedPage   int             `json:"failed_page,omitempty"`
	StopReason   string          `json:"stop_reason"`
	LastError    string          `json:"last_error,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

// Summary 返回结果摘要
func (r *Result) Summary() map[string]interface{} {
	return map[string]interface{}{
		"item_count":    r.ItemCount,
		"pages_fetched": r.PagesFetched,
		"last_page":     r.LastPage,
		"failed_page":   r.FailedPage,
		"stop_reason":   r.StopReason,
		"last_error":    r.LastError,
		"duration_ms":   r.Duration.Milliseconds(),
	}
}

// Collector 分页采集器
type Collector struct {
	opts Options
}

// NewCollector 创建分页采集器
func NewCollector(opts Options) *Collector {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Pacer == nil {
		opts.Pacer = rate_limiter.NoopPacer{}
	}
	return &Collector{opts: opts}
}

// Collect 执行分页采集。只有前置条件不满足时返回错误，单页失败体现在结果中
func (c *Collector) Collect(ctx context.Context, fetcher PageFetcher) (*Result, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: 分页获取能力为空", meta.ErrInvalidOption)
	}
	if c.opts.PageSize < 0 {
		return nil, fmt.Errorf("%w: 每页条数必须大于0，当前为%d", meta.ErrInvalidOption, c.opts.PageSize)
	}

	start := time.Now()
	result := &Result{}

	for page := 1; c.opts.MaxPages <= 0 || page <= c.opts.MaxPages; page++ {
		if page > 1 {
			if err := c.opts.Pacer.Wait(ctx); err != nil {
				result.StopReason = meta.StopReasonCancelled
				result.LastError = err.Error()
				break
			}
		}
		if err := ctx.Err(); err != nil {
			result.StopReason = meta.StopReasonCancelled
			result.LastError = err.Error()
			break
		}

		result.LastPage = page
		items, err := fetcher.FetchPage(ctx, page, c.opts.PageSize)
		if err != nil {
			slog.Warn("分页采集失败，提前终止", "page", page, "collected", len(result.Items), "error", err)
			c.observePage(monitoring.OutcomeFailure, 0)
			result.StopReason = meta.StopReasonFailure
			result.FailedPage = page
			result.LastError = err.Error()
			break
		}

		if len(items) == 0 {
			slog.Info("分页采集遇到空页，数据已取完", "page", page)
			c.observePage(monitoring.OutcomeEmpty, 0)
			result.StopReason = meta.StopReasonExhausted
			break
		}

		result.Items = append(result.Items, items...)
		result.PagesFetched++
		c.observePage(monitoring.OutcomeSuccess, len(items))

		if page%c.opts.ProgressEvery == 0 {
			slog.Info("分页采集进度", "page", page, "collected", len(result.Items))
		}
	}

	if result.StopReason == "" {
		result.StopReason = meta.StopReasonMaxPages
	}
	result.ItemCount = len(result.Items)
	result.Duration = time.Since(start)

	slog.Info("分页采集完成",
		"items", result.ItemCount,
		"pages", result.PagesFetched,
		"stop_reason", result.StopReason)

	return result, nil
}

func (c *Collector) observePage(outcome string, items int) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObservePage(outcome, items)
	}
}
