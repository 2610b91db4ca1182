/*
 * @module service/database/repository
 * @description 输出表仓储：整表替换写入各阶段结果，查询供HTTP接口使用；运行记录的增改查
 * @architecture 数据访问层 - 仓储模式
 * @stateFlow 阶段完成 -> 事务内清空旧表 -> 批量写入 -> 提交
 * @rules
 *   - 每次运行整表重算，写入前清空该表，不做增量合并
 *   - 每个数据源一张明细表，表名由数据源名称派生
 * @dependencies gorm.io/gorm, github.com/lib/pq
 * @refs service/pipeline
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/icedo724/medi/service/models"
)

// 批量写入大小
const batchSize = 500

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("运行记录不存在")

// Repository 输出表仓储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层连接
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// replace 在事务内清空表并批量写入
func replace[T any](ctx context.Context, db *gorm.DB, table string, rows []T) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := truncate(tx, table); err != nil {
			return fmt.Errorf("清空表 %s 失败: %w", table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Table(table).CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("写入表 %s 失败: %w", table, err)
		}
		return nil
	})
}

// ReplaceEntities 替换登记实体表
func (r *Repository) ReplaceEntities(ctx context.Context, runID string, entities []models.EntityRecord) error {
	rows := make([]models.EntityRecord, len(entities))
	for i, e := range entities {
		e.RunID = runID
		rows[i] = e
	}
	return replace(ctx, r.db, models.EntityRecord{}.TableName(), rows)
}

// ReplaceMatches 替换匹配结果表
func (r *Repository) ReplaceMatches(ctx context.Context, runID string, results []models.MatchResult) error {
	rows := make([]models.MatchResult, len(results))
	for i, m := range results {
		m.ID = 0
		m.RunID = runID
		rows[i] = m
	}
	return replace(ctx, r.db, models.MatchResult{}.TableName(), rows)
}

// ReplaceRFM 替换RFM结果表
func (r *Repository) ReplaceRFM(ctx context.Context, runID string, records []models.RFMRecord) error {
	rows := make([]models.RFMRecord, len(records))
	for i, rec := range records {
		rec.RunID = runID
		rows[i] = rec
	}
	return replace(ctx, r.db, models.RFMRecord{}.TableName(), rows)
}

// ReplaceDetails 替换某个数据源的明细表，必要时先建表
func (r *Repository) ReplaceDetails(ctx context.Context, runID, source string, details []models.DetailRecord) (string, error) {
	table, err := MigrateDetailTable(r.db.WithContext(ctx), source)
	if err != nil {
		return "", err
	}
	rows := make([]models.DetailRecord, len(details))
	for i, d := range details {
		d.ID = 0
		d.RunID = runID
		rows[i] = d
	}
	return table, replace(ctx, r.db, table, rows)
}

// ListEntities 分页查询登记实体
func (r *Repository) ListEntities(ctx context.Context, limit, offset int) ([]models.EntityRecord, int64, error) {
	var total int64
	var rows []models.EntityRecord
	q := r.db.WithContext(ctx).Model(&models.EntityRecord{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("entity_id").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// ListMatches 分页查询匹配结果，matchedOnly 为真时只返回有匹配的记录
func (r *Repository) ListMatches(ctx context.Context, matchedOnly bool, limit, offset int) ([]models.MatchResult, int64, error) {
	var total int64
	var rows []models.MatchResult
	q := r.db.WithContext(ctx).Model(&models.MatchResult{})
	if matchedOnly {
		q = q.Where("matched_entity_id IS NOT NULL")
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// ListRFM 分页查询RFM结果，segment 为空时不过滤
func (r *Repository) ListRFM(ctx context.Context, segment string, limit, offset int) ([]models.RFMRecord, int64, error) {
	var total int64
	var rows []models.RFMRecord
	q := r.db.WithContext(ctx).Model(&models.RFMRecord{})
	if segment != "" {
		q = q.Where("segment = ?", segment)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("entity_id").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// SegmentDistribution 统计各分群实体数
func (r *Repository) SegmentDistribution(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Segment string
		Count   int
	}
	err := r.db.WithContext(ctx).Model(&models.RFMRecord{}).
		Select("segment, COUNT(*) AS count").
		Group("segment").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Segment] = row.Count
	}
	return out, nil
}

// ListDetails 查询某数据源下某实体的明细
func (r *Repository) ListDetails(ctx context.Context, source, entityID string) ([]models.DetailRecord, error) {
	table, err := DetailTableName(source)
	if err != nil {
		return nil, err
	}
	if !r.db.Migrator().HasTable(table) {
		return []models.DetailRecord{}, nil
	}
	var rows []models.DetailRecord
	err = r.db.WithContext(ctx).Table(table).Where("entity_id = ?", entityID).Order("id").Find(&rows).Error
	for i := range rows {
		rows[i].Source = source
	}
	return rows, err
}

// CreateRun 创建运行记录
func (r *Repository) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// SaveRun 保存运行记录
func (r *Repository) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetRun 查询运行记录
func (r *Repository) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按创建时间倒序分页查询运行记录
func (r *Repository) ListRuns(ctx context.Context, status string, limit, offset int) ([]models.PipelineRun, int64, error) {
	var total int64
	var rows []models.PipelineRun
	q := r.db.WithContext(ctx).Model(&models.PipelineRun{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

// DeleteRunsBefore 删除指定时间之前创建的运行记录
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.PipelineRun{})
	return result.RowsAffected, result.Error
}
