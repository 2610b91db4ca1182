/*
 * @module service/cleanup/log_cleanup_service
 * @description 运行记录清理服务，定期删除超过保留期的流水线运行记录
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 定时触发 -> 计算截止时间 -> 删除 -> 记录结果
 * @rules 只清理运行记录，不影响各阶段输出表
 * @dependencies gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/database/repository.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule 每天凌晨2点
const DefaultSchedule = "0 0 2 * * *"

// RunPurger 按时间删除运行记录
type RunPurger interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogCleanupService 运行记录清理服务
type LogCleanupService struct {
	purger        RunPurger
	retentionDays int
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	now           func() time.Time
}

// NewLogCleanupService 创建运行记录清理服务
func NewLogCleanupService(purger RunPurger, retentionDays int) *LogCleanupService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LogCleanupService{
		purger:        purger,
		retentionDays: retentionDays,
		cron:          cron.New(cron.WithSeconds()),
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// CleanupExpiredRuns 删除保留期之前创建的运行记录
func (s *LogCleanupService) CleanupExpiredRuns(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	start := time.Now()

	deleted, err := s.purger.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("删除过期运行记录失败: %w", err)
	}

	slog.Info("运行记录清理完成",
		"deleted_count", deleted,
		"retention_days", s.retentionDays,
		"cutoff", cutoff.Format("2006-01-02 15:04:05"),
		"duration_ms", time.Since(start).Milliseconds())
	return deleted, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *LogCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("运行记录清理调度器已经启动")
	}

	_, err := s.cron.AddFunc(DefaultSchedule, func() {
		if _, err := s.CleanupExpiredRuns(s.ctx); err != nil {
			slog.Error("定时运行记录清理失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true
	slog.Info("运行记录清理调度器已启动", "retention_days", s.retentionDays)
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *LogCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	slog.Info("运行记录清理调度器已停止")
}
