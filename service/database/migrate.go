/*
 * @module service/database/migrate
 * @description 数据库迁移模块：输出表与运行记录表
 * @architecture 数据访问层 - 迁移管理
 * @stateFlow 启动时迁移固定表；明细表在首次写入某数据源时按需迁移
 * @rules 各阶段输出表互不关联，不建外键
 * @dependencies gorm.io/gorm
 * @refs repository.go
 */

package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/icedo724/medi/service/models"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	slog.Info("开始数据库迁移")

	err := db.AutoMigrate(
		&models.EntityRecord{},
		&models.MatchResult{},
		&models.RFMRecord{},
		&models.PipelineRun{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	slog.Info("数据库表结构迁移完成")
	return nil
}

// MigrateDetailTable 迁移单个数据源的明细表
func MigrateDetailTable(db *gorm.DB, source string) (string, error) {
	table, err := DetailTableName(source)
	if err != nil {
		return "", err
	}
	if err := db.Table(table).AutoMigrate(&models.DetailRecord{}); err != nil {
		return "", fmt.Errorf("明细表 %s 迁移失败: %w", table, err)
	}
	return table, nil
}
