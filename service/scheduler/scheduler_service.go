/**
 * @module SchedulerService
 * @description 流水线定时调度：按Cron表达式触发流水线运行
 * @architecture 基于 robfig/cron 的调度器模式
 * @stateFlow Start -> 到点触发 -> 运行流水线 -> 等待下次触发 -> Stop
 * @rules
 *   - 支持5段和6段(带秒)表达式以及 @every/@daily 等描述符
 *   - 上一次运行未结束时跳过本次触发
 *   - 配置了分布式锁时，多个副本中只有拿到锁的实例执行
 * @dependencies github.com/robfig/cron/v3
 * @refs service/pipeline
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/icedo724/medi/service/distributed_lock"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/pipeline"
)

// 定时运行使用的锁键
const (
	runLockKey     = "pipeline-run"
	defaultLockTTL = 5 * time.Minute
)

// Trigger 流水线运行能力
type Trigger interface {
	Run(ctx context.Context, req pipeline.Request) (*models.PipelineRun, error)
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec 校验Cron表达式
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("Cron表达式无效 %q: %w", spec, err)
	}
	return nil
}

// SchedulerService 调度器服务
type SchedulerService struct {
	trigger Trigger
	spec    string
	stages  []string
	cron    *cron.Cron
	entryID cron.EntryID
	locker  *distributed_lock.LockExecutor
	lockTTL time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSchedulerService 创建调度器服务，stages 为空表示全部阶段
func NewSchedulerService(trigger Trigger, spec string, stages []string) (*SchedulerService, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if _, err := pipeline.NormalizeStages(stages); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &SchedulerService{
		trigger: trigger,
		spec:    spec,
		stages:  stages,
		cron:    c,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// UseLock 设置跨实例的运行锁，须在 Start 之前调用
func (s *SchedulerService) UseLock(lock distributed_lock.DistributedLock, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	s.locker = distributed_lock.NewLockExecutor(lock)
	s.lockTTL = ttl
}

// Start 启动调度器
func (s *SchedulerService) Start() error {
	id, err := s.cron.AddFunc(s.spec, s.execute)
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	slog.Info("流水线调度器已启动", "spec", s.spec, "next_run", s.NextRun())
	return nil
}

// Stop 停止调度器并等待正在执行的运行结束
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Info("流水线调度器已停止")
}

// NextRun 下次触发时间，未启动时为零值
func (s *SchedulerService) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// execute 触发一次运行
func (s *SchedulerService) execute() {
	if s.locker == nil {
		s.runOnce()
		return
	}
	err := s.locker.ExecuteWithLockAndRefresh(s.ctx, runLockKey, s.lockTTL, s.lockTTL/3, func() error {
		s.runOnce()
		return nil
	})
	switch {
	case errors.Is(err, distributed_lock.ErrLockHeld):
		slog.Info("其他实例正在执行定时运行，跳过本次触发")
	case err != nil:
		slog.Error("获取运行锁失败，跳过本次触发", "error", err)
	}
}

func (s *SchedulerService) runOnce() {
	run, err := s.trigger.Run(s.ctx, pipeline.Request{Stages: s.stages, Trigger: pipeline.TriggerCron})
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		slog.Warn("已有运行在执行，跳过本次定时触发")
	case err != nil && run == nil:
		slog.Error("定时运行启动失败", "error", err)
	case err != nil:
		slog.Error("定时运行失败", "run_id", run.ID, "error", err)
	default:
		slog.Info("定时运行完成", "run_id", run.ID, "status", run.Status)
	}
}
