/*
 * @module service/init
 * @description 服务初始化模块：数据库连接、迁移、流水线运行器、事件发布与定时调度的装配
 * @architecture 分层架构 - 服务层
 * @stateFlow 加载配置 -> 连接数据库并迁移(可选) -> 创建发布器 -> 创建运行器 -> 启动调度器(可选)
 * @rules 确保所有依赖服务正常启动后才提供API服务；装配过程不读取环境变量
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs main.go, cmd/medictl
 */

package service

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/icedo724/medi/client/connectors"
	"github.com/icedo724/medi/service/cleanup"
	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/database"
	"github.com/icedo724/medi/service/distributed_lock"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/pipeline"
	"github.com/icedo724/medi/service/scheduler"
)

// App 装配完成的服务
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Repository *database.Repository
	Runner     *pipeline.Runner
	Scheduler  *scheduler.SchedulerService
	RunLock    *distributed_lock.RedisLock
	Cleanup    *cleanup.LogCleanupService
	Publishers connectors.Publishers
	Metrics    *monitoring.MetricsCollector
}

// BootstrapOptions 装配选项
type BootstrapOptions struct {
	// EnableScheduler 为假时忽略 RUN_CRON，命令行工具使用
	EnableScheduler bool
	// Sources 替换外部接口，为空时使用公共数据门户
	Sources pipeline.SourceFactory
}

// Bootstrap 按配置装配服务
func Bootstrap(cfg *config.Config, opts BootstrapOptions) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: monitoring.Default(),
	}

	runnerOpts := []pipeline.Option{pipeline.WithMetrics(app.Metrics)}
	if opts.Sources != nil {
		runnerOpts = append(runnerOpts, pipeline.WithSources(opts.Sources))
	}

	if cfg.Database.Enabled {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		app.DB = db
		app.Repository = database.NewRepository(db)
		runnerOpts = append(runnerOpts,
			pipeline.WithRunStore(app.Repository),
			pipeline.WithOutputStore(app.Repository))
	} else {
		slog.Info("未启用数据库，输出只写入数据目录", "data_dir", cfg.DataDir)
	}

	publishers, err := connectors.NewPublishers(cfg.Kafka, cfg.MQTT)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Publishers = publishers
	if len(publishers) > 0 {
		runnerOpts = append(runnerOpts, pipeline.WithPublisher(publishers))
	}

	app.Runner = pipeline.NewRunner(cfg, runnerOpts...)

	if opts.EnableScheduler && cfg.RunCron != "" {
		s, err := scheduler.NewSchedulerService(app.Runner, cfg.RunCron, nil)
		if err != nil {
			app.Close()
			return nil, err
		}
		if cfg.Redis.RunLock {
			lock, err := distributed_lock.NewRedisLock(distributed_lock.Options{
				Addr:     cfg.Redis.Addr(),
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				app.Close()
				return nil, err
			}
			app.RunLock = lock
			s.UseLock(lock, cfg.Redis.RunLockTTL)
		}
		if err := s.Start(); err != nil {
			app.Close()
			return nil, fmt.Errorf("启动调度器服务失败: %w", err)
		}
		app.Scheduler = s
	}

	if opts.EnableScheduler && app.Repository != nil && cfg.RunRetentionDays > 0 {
		c := cleanup.NewLogCleanupService(app.Repository, cfg.RunRetentionDays)
		if err := c.StartScheduledCleanup(); err != nil {
			app.Close()
			return nil, err
		}
		app.Cleanup = c
	}

	slog.Info("服务初始化完成",
		"database", cfg.Database.Enabled,
		"publishers", len(publishers),
		"scheduler", app.Scheduler != nil)
	return app, nil
}

// initDatabase 连接数据库并迁移输出表
func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	slog.Info("数据库连接成功")

	if cfg.Schema != "" && cfg.Schema != "public" && !database.CheckSchemaExists(db, cfg.Schema) {
		if err := database.CreateSchema(db, cfg.Schema); err != nil {
			return nil, err
		}
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Close 停止调度器并释放连接
func (a *App) Close() {
	if a.Cleanup != nil {
		a.Cleanup.StopScheduledCleanup()
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Runner != nil {
		a.Runner.Wait()
	}
	if a.RunLock != nil {
		a.RunLock.Close()
	}
	if len(a.Publishers) > 0 {
		if err := a.Publishers.Close(); err != nil {
			slog.Warn("关闭事件发布器失败", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
