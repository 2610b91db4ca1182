/*
 * @module service/models/pipeline_run
 * @description 流水线运行记录模型
 * @architecture DDD领域驱动设计 - 实体模型
 * @stateFlow pending -> running -> success/failed
 * @rules 运行ID由UUID生成，摘要以JSONB保存各阶段结果计数
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/pipeline
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PipelineRun 一次流水线运行
type PipelineRun struct {
	ID           string           `json:"id" gorm:"primaryKey;type:varchar(36)" example:"550e8400-e29b-41d4-a716-446655440000"`
	Stages       JSONBStringArray `json:"stages" gorm:"type:jsonb"`
	Status       string           `json:"status" gorm:"not null;size:20;default:'pending'" example:"pending"`
	Trigger      string           `json:"trigger" gorm:"size:20;default:'manual'" example:"manual"` // manual, cron, cli
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	Summary      JSONB            `json:"summary,omitempty" gorm:"type:jsonb"`
	ErrorMessage string           `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BeforeCreate GORM钩子，创建前生成UUID
func (r *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// RunEvent 运行结束时发布的事件
type RunEvent struct {
	RunID        string                 `json:"run_id"`
	Status       string                 `json:"status"`
	Trigger      string                 `json:"trigger"`
	Stages       []string               `json:"stages"`
	Summary      map[string]interface{} `json:"summary,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	FinishedAt   time.Time              `json:"finished_at"`
}

// Event 由运行记录生成事件
func (r *PipelineRun) Event() RunEvent {
	e := RunEvent{
		RunID:        r.ID,
		Status:       r.Status,
		Trigger:      r.Trigger,
		Stages:       []string(r.Stages),
		Summary:      map[string]interface{}(r.Summary),
		ErrorMessage: r.ErrorMessage,
	}
	if r.FinishedAt != nil {
		e.FinishedAt = *r.FinishedAt
	}
	return e
}
