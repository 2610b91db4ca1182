/*
 * @module service/aggregator/aggregator
 * @description 多源聚合器：按实体标识从多个独立明细源拉取数据，按数据源分表输出
 * @architecture 扇出 - 实体 × 数据源，可选worker池并发，结果按确定顺序汇总
 * @stateFlow 实体去重 -> 逐个(实体,数据源)节流调用 -> 槽位记录 -> 按实体顺序汇总为各源明细表
 * @rules
 *   - 单次调用失败不影响其他实体或其他数据源，按"无数据"处理并单独计数
 *   - 不同数据源的明细永不合并为一张表
 *   - 并发时所有worker共用同一个节流器
 *   - 同一实体在同一数据源下的多条明细全部保留，不去重
 * @dependencies golang.org/x/sync/errgroup, service/rate_limiter
 * @refs service/datasource/detail_fetcher.go
 */

package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/rate_limiter"
)

// DefaultProgressEvery 每处理多少个实体输出一次进度
const DefaultProgressEvery = 50

// Source 按实体标识获取明细的数据源
type Source interface {
	Name() string
	FetchDetails(ctx context.Context, entityID string) ([]models.Record, error)
}

// FetchFunc 明细获取函数
type FetchFunc func(ctx context.Context, entityID string) ([]models.Record, error)

type funcSource struct {
	name string
	fn   FetchFunc
}

func (s funcSource) Name() string { return s.name }

func (s funcSource) FetchDetails(ctx context.Context, entityID string) ([]models.Record, error) {
	return s.fn(ctx, entityID)
}

// NewSource 用函数构造数据源
func NewSource(name string, fn FetchFunc) Source {
	return funcSource{name: name, fn: fn}
}

// Options 聚合参数
type Options struct {
	Workers       int // <=1 时顺序执行
	Pacer         rate_limiter.Pacer
	ProgressEvery int
	Metrics       *monitoring.MetricsCollector
}

// SourceStats 单个数据源的统计
type SourceStats struct {
	Entities int `json:"entities"`
	WithData int `json:"with_data"`
	NoData   int `json:"no_data"`
	Failures int `json:"failures"`
	Records  int `json:"records"`
}

// Result 聚合结果，所有映射都以数据源名称为键
type Result struct {
	Sources  []string                         `json:"sources"`
	Entities []string                         `json:"-"`
	Tables   map[string][]models.DetailRecord `json:"-"`
	NoData   map[string][]string              `json:"no_data"`
	Failures map[string]int                   `json:"failures"`
	Stats    map[string]*SourceStats          `json:"stats"`
	Duration time.Duration                    `json:"duration"`
}

// Summary 返回按数据源的摘要
func (r *Result) Summary() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Sources))
	for _, name := range r.Sources {
		out[name] = r.Stats[name]
	}
	return out
}

// 单个(实体,数据源)调用的结果槽位
type outcome struct {
	records []models.Record
	failed  bool
}

// Aggregator 多源聚合器
type Aggregator struct {
	opts    Options
	sources []Source
	calls   atomic.Int64
}

// NewAggregator 创建聚合器，数据源名称必须非空且唯一
func NewAggregator(sources []Source, opts Options) (*Aggregator, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: 至少需要一个明细数据源", meta.ErrInvalidOption)
	}
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		name := strings.TrimSpace(s.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: 数据源名称不能为空", meta.ErrInvalidOption)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: 数据源名称重复: %s", meta.ErrInvalidOption, name)
		}
		seen[name] = struct{}{}
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Pacer == nil {
		opts.Pacer = rate_limiter.NoopPacer{}
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	return &Aggregator{opts: opts, sources: sources}, nil
}

// Aggregate 对全部实体执行多源聚合。
// 只有取消会返回错误，此时结果包含取消前已完成的实体
func (a *Aggregator) Aggregate(ctx context.Context, entityIDs []string) (*Result, error) {
	start := time.Now()
	a.calls.Store(0)

	ids := dedupe(entityIDs)
	slots := make([][]outcome, len(ids))
	done := make([]bool, len(ids))
	var processed atomic.Int64

	slog.Info("开始多源聚合",
		"entities", len(ids),
		"sources", len(a.sources),
		"workers", a.opts.Workers)

	process := func(ctx context.Context, i int) error {
		row := make([]outcome, len(a.sources))
		for j, src := range a.sources {
			if err := ctx.Err(); err != nil {
				return err
			}
			if a.calls.Add(1) > 1 {
				if err := a.opts.Pacer.Wait(ctx); err != nil {
					return err
				}
			}
			row[j] = a.fetch(ctx, src, ids[i])
		}
		slots[i] = row
		done[i] = true

		if n := processed.Add(1); n%int64(a.opts.ProgressEvery) == 0 {
			slog.Info("多源聚合进度", "processed", n, "total", len(ids))
		}
		return nil
	}

	var runErr error
	if a.opts.Workers == 1 {
		for i := range ids {
			if err := process(ctx, i); err != nil {
				runErr = err
				break
			}
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(a.opts.Workers)
		for i := range ids {
			i := i
			if gCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				return process(gCtx, i)
			})
		}
		runErr = g.Wait()
		if runErr == nil {
			runErr = ctx.Err()
		}
	}

	result := a.assemble(ids, slots, done)
	result.Duration = time.Since(start)

	for _, name := range result.Sources {
		st := result.Stats[name]
		slog.Info("数据源聚合统计",
			"source", name,
			"with_data", st.WithData,
			"no_data", st.NoData,
			"failures", st.Failures,
			"records", st.Records)
	}

	if runErr != nil {
		return result, fmt.Errorf("多源聚合被取消: %w", runErr)
	}
	return result, nil
}

// fetch 执行单次调用，失败被吞掉并记为无数据
func (a *Aggregator) fetch(ctx context.Context, src Source, entityID string) outcome {
	records, err := src.FetchDetails(ctx, entityID)
	if err != nil {
		slog.Warn("明细获取失败，按无数据处理", "source", src.Name(), "entity_id", entityID, "error", err)
		a.observe(src.Name(), monitoring.OutcomeFailure)
		return outcome{failed: true}
	}
	if len(records) == 0 {
		a.observe(src.Name(), monitoring.OutcomeNoData)
		return outcome{}
	}
	a.observe(src.Name(), monitoring.OutcomeData)
	return outcome{records: records}
}

// assemble 按实体顺序 × 数据源顺序汇总，未完成的实体不计入
func (a *Aggregator) assemble(ids []string, slots [][]outcome, done []bool) *Result {
	result := &Result{
		Sources:  make([]string, len(a.sources)),
		Tables:   make(map[string][]models.DetailRecord, len(a.sources)),
		NoData:   make(map[string][]string, len(a.sources)),
		Failures: make(map[string]int, len(a.sources)),
		Stats:    make(map[string]*SourceStats, len(a.sources)),
	}
	for j, src := range a.sources {
		name := src.Name()
		result.Sources[j] = name
		result.Tables[name] = []models.DetailRecord{}
		result.NoData[name] = []string{}
		result.Stats[name] = &SourceStats{}
	}

	for i, id := range ids {
		if !done[i] {
			continue
		}
		result.Entities = append(result.Entities, id)
		for j, name := range result.Sources {
			o := slots[i][j]
			st := result.Stats[name]
			st.Entities++
			if o.failed {
				result.Failures[name]++
				st.Failures++
			}
			if len(o.records) == 0 {
				result.NoData[name] = append(result.NoData[name], id)
				st.NoData++
				continue
			}
			st.WithData++
			st.Records += len(o.records)
			for _, r := range o.records {
				result.Tables[name] = append(result.Tables[name], models.NewDetailRecord(name, id, r))
			}
		}
	}
	return result
}

func (a *Aggregator) observe(source, outcome string) {
	if a.opts.Metrics != nil {
		a.opts.Metrics.ObserveDetailCall(source, outcome)
	}
}

// dedupe 去除空白与重复标识，保留首次出现顺序
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
