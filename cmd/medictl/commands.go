/*
 * @module cmd/medictl/commands
 * @description 命令行入口：单独执行某个阶段、整条流水线或库存表清洗
 * @architecture 命令模式 - cobra 子命令
 * @stateFlow 解析参数 -> 加载配置 -> 装配服务(不启动定时任务) -> 执行 -> 输出运行摘要
 * @rules 收到中断信号时取消当前运行，已完成阶段的输出保留
 * @dependencies github.com/spf13/cobra, gopkg.in/yaml.v3
 * @refs service/init.go, service/pipeline/pipeline.go
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/icedo724/medi/logger"
	"github.com/icedo724/medi/service"
	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/data_quality"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/pipeline"
)

var (
	envFile  string
	logLevel string
	stages   []string
	column   string
)

var rootCmd = &cobra.Command{
	Use:           "medictl",
	Short:         "医疗机构数据流水线命令行工具",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "按固定顺序执行流水线",
	Long: `按 collect -> resolve -> aggregate -> segment 顺序执行所选阶段。

示例:
  medictl run
  medictl run --stages resolve,segment`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, stages)
	},
}

var cleanseCmd = &cobra.Command{
	Use:   "cleanse INPUT OUTPUT",
	Short: "清洗库存表：展开属性列并规范表头",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		stats, err := data_quality.NewCleanser(column).CleanseFile(args[0], args[1])
		if err != nil {
			return err
		}
		return printYAML(cmd, stats)
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "显示当前生效的数据源目录",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printYAML(cmd, cfg.Sources)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "环境变量文件，默认读取当前目录的 .env")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别，覆盖 LOG_LEVEL")

	runCmd.Flags().StringSliceVar(&stages, "stages", nil, "要执行的阶段，逗号分隔，默认全部")
	cleanseCmd.Flags().StringVar(&column, "column", data_quality.DefaultAttributeColumn, "属性JSON所在列")

	rootCmd.AddCommand(runCmd, cleanseCmd, sourcesCmd)
	for _, stage := range meta.PipelineStages {
		rootCmd.AddCommand(stageCommand(stage))
	}
}

// stageCommand 单阶段子命令
func stageCommand(stage string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: fmt.Sprintf("只执行 %s 阶段", stage),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, []string{stage})
		},
	}
}

func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.InitLogger(cfg.LogLevel)
	return cfg, nil
}

func runStages(cmd *cobra.Command, requested []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := service.Bootstrap(cfg, service.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, runErr := app.Runner.Run(ctx, pipeline.Request{Stages: requested, Trigger: pipeline.TriggerCLI})
	if run != nil {
		if err := printYAML(cmd, runReport(run)); err != nil {
			return err
		}
	}
	return runErr
}

type report struct {
	RunID   string                 `yaml:"run_id"`
	Status  string                 `yaml:"status"`
	Stages  string                 `yaml:"stages"`
	Error   string                 `yaml:"error,omitempty"`
	Summary map[string]interface{} `yaml:"summary,omitempty"`
}

func runReport(run *models.PipelineRun) report {
	return report{
		RunID:   run.ID,
		Status:  run.Status,
		Stages:  strings.Join(run.Stages, ","),
		Error:   run.ErrorMessage,
		Summary: run.Summary,
	}
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
