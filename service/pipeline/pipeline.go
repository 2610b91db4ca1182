/*
 * @module service/pipeline/pipeline
 * @description 流水线编排：按固定顺序执行所选阶段，记录运行状态与摘要，持久化输出并发布完成事件
 * @architecture 编排器模式 - 阶段之间通过数据目录中的表交接
 * @stateFlow pending -> running -> 各阶段依次执行 -> success/failed -> 发布事件
 * @rules
 *   - 阶段顺序固定为 collect -> resolve -> aggregate -> segment，请求中的顺序不影响执行顺序
 *   - 同一时间只允许一次运行
 *   - 某阶段返回错误时后续阶段不再执行
 *   - 事件发布失败只记录日志，不改变运行状态
 * @dependencies service/collector, service/resolver, service/aggregator, service/rfm, service/database
 * @refs api/controllers/pipeline_controller.go, service/scheduler, cmd/medictl
 */

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
)

// 触发方式
const (
	TriggerManual = "manual"
	TriggerCron   = "cron"
	TriggerCLI    = "cli"
)

// ErrRunInProgress 已有运行在执行
var ErrRunInProgress = errors.New("已有流水线运行在执行")

// EventPublisher 运行事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event models.RunEvent) error
}

// Request 运行请求
type Request struct {
	Stages  []string `json:"stages" example:"collect,resolve"`
	Trigger string   `json:"trigger,omitempty" example:"manual"`
}

// Option 运行器选项
type Option func(*Runner)

// WithSources 替换外部接口能力的构造方式
func WithSources(factory SourceFactory) Option {
	return func(r *Runner) { r.sources = factory }
}

// WithRunStore 设置运行记录存储
func WithRunStore(store RunStore) Option {
	return func(r *Runner) { r.runs = store }
}

// WithOutputStore 设置输出持久化，未设置时只写文件
func WithOutputStore(store OutputStore) Option {
	return func(r *Runner) { r.outputs = store }
}

// WithPublisher 设置事件发布
func WithPublisher(p EventPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner 流水线运行器
type Runner struct {
	cfg       *config.Config
	sources   SourceFactory
	runs      RunStore
	outputs   OutputStore
	publisher EventPublisher
	metrics   *monitoring.MetricsCollector
	now       func() time.Time

	running sync.Mutex
	wg      sync.WaitGroup
}

// NewRunner 创建运行器
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		sources: DefaultSources,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runs == nil {
		r.runs = NewMemoryRunStore()
	}
	return r
}

// Config 返回运行器使用的配置
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Runs 返回运行记录存储
func (r *Runner) Runs() RunStore {
	return r.runs
}

// NormalizeStages 校验阶段名称并按固定顺序去重，空列表表示全部阶段
func NormalizeStages(stages []string) ([]string, error) {
	if len(stages) == 0 {
		out := make([]string, len(meta.PipelineStages))
		copy(out, meta.PipelineStages)
		return out, nil
	}
	wanted := make(map[string]bool, len(stages))
	for _, s := range stages {
		if !meta.IsValidStage(s) {
			return nil, fmt.Errorf("%w: 未知阶段 %q", meta.ErrInvalidOption, s)
		}
		wanted[s] = true
	}
	out := make([]string, 0, len(wanted))
	for _, s := range meta.PipelineStages {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Run 同步执行一次运行。返回的错误是导致运行失败的阶段错误
func (r *Runner) Run(ctx context.Context, req Request) (*models.PipelineRun, error) {
	run, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer r.running.Unlock()

	err = r.execute(ctx, run)
	return run, err
}

// Start 异步执行一次运行，立即返回处于 running 状态的运行记录
func (r *Runner) Start(ctx context.Context, req Request) (*models.PipelineRun, error) {
	run, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot := *run
	snapshot.Summary = models.JSONB{}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Unlock()
		if err := r.execute(context.WithoutCancel(ctx), run); err != nil {
			slog.Error("流水线运行失败", "run_id", run.ID, "error", err)
		}
	}()
	return &snapshot, nil
}

// Wait 等待所有异步运行结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

// prepare 校验请求、占用运行锁并创建运行记录。成功返回时运行锁由调用方释放
func (r *Runner) prepare(ctx context.Context, req Request) (*models.PipelineRun, error) {
	stages, err := NormalizeStages(req.Stages)
	if err != nil {
		return nil, err
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}

	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}

	started := r.now()
	run := &models.PipelineRun{
		Stages:    models.JSONBStringArray(stages),
		Status:    meta.RunStatusRunning,
		Trigger:   trigger,
		StartedAt: &started,
		Summary:   models.JSONB{},
		CreatedAt: started,
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		r.running.Unlock()
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	return run, nil
}

type stageFunc func(ctx context.Context, runID string) (map[string]interface{}, error)

func (r *Runner) stage(name string) stageFunc {
	switch name {
	case meta.StageCollect:
		return r.collect
	case meta.StageResolve:
		return r.resolve
	case meta.StageAggregate:
		return r.aggregate
	default:
		return r.segment
	}
}

func (r *Runner) execute(ctx context.Context, run *models.PipelineRun) error {
	slog.Info("流水线开始运行", "run_id", run.ID, "stages", []string(run.Stages), "trigger", run.Trigger)

	var runErr error
	for _, name := range run.Stages {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("运行在阶段 %s 之前被取消: %w", name, err)
			break
		}

		start := r.now()
		summary, err := r.stage(name)(ctx, run.ID)
		elapsed := r.now().Sub(start)
		if r.metrics != nil {
			r.metrics.ObserveStage(name, elapsed)
		}
		if summary != nil {
			run.Summary[name] = summary
		}
		if err != nil {
			runErr = fmt.Errorf("阶段 %s 失败: %w", name, err)
			slog.Error("流水线阶段失败", "run_id", run.ID, "stage", name, "error", err)
			break
		}
		slog.Info("流水线阶段完成", "run_id", run.ID, "stage", name, "elapsed", elapsed.String())
	}

	finished := r.now()
	run.FinishedAt = &finished
	run.Status = meta.RunStatusSuccess
	if runErr != nil {
		run.Status = meta.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := r.runs.SaveRun(saveCtx, run); err != nil {
		slog.Error("保存运行记录失败", "run_id", run.ID, "error", err)
	}
	if r.metrics != nil {
		r.metrics.ObserveRun(run.Status)
	}
	r.publish(saveCtx, run)

	slog.Info("流水线运行结束", "run_id", run.ID, "status", run.Status)
	return runErr
}

func (r *Runner) publish(ctx context.Context, run *models.PipelineRun) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, run.Event()); err != nil {
		slog.Warn("运行事件发布失败", "run_id", run.ID, "error", err)
	}
}
