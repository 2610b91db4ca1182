/*
 * @module service/models/entity
 * @description 医疗机构登记实体、内部客户记录与名称匹配结果模型
 * @architecture DDD领域驱动设计 - 实体模型
 * @stateFlow 采集 -> EntityRecord；客户台账 -> ClientRecord；解析 -> MatchResult
 * @rules entity_id 唯一且入库后不可变；每个客户记录恰好对应一个匹配结果
 * @dependencies gorm.io/gorm
 * @refs service/collector, service/resolver
 */

package models

import (
	"time"
)

// 登记数据源字段名（健康保险审查评价院 getHospBasisList）
const (
	RegistryFieldEntityID    = "ykiho"
	RegistryFieldDisplayName = "yadmNm"
	RegistryFieldRegion      = "sgguCdNm"
	RegistryFieldAddress     = "addr"
	RegistryFieldCategory    = "clCdNm"
)

// EntityRecord 规范登记实体
type EntityRecord struct {
	EntityID    string    `json:"entity_id" gorm:"primaryKey;type:varchar(128)" example:"JDQ4MTYyMiM1MSMkMSMkMCMkODkkMzgxMzUxIzExIyQxIyQzIyQ3OSQyNjE4MzIjNjEjJDEjJDgjJDgz"`
	DisplayName string    `json:"display_name" gorm:"not null;size:255;index" example:"서울대학교병원"`
	Region      string    `json:"region" gorm:"size:100" example:"종로구"`
	Address     string    `json:"address" gorm:"size:500"`
	Category    *string   `json:"category,omitempty" gorm:"size:100" example:"상급종합"`
	RunID       string    `json:"run_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (EntityRecord) TableName() string {
	return "registry_entities"
}

// EntityFromRecord 将登记接口记录转换为实体，缺少entity_id时返回false
func EntityFromRecord(r Record) (EntityRecord, bool) {
	id := r.Get(RegistryFieldEntityID)
	if id == "" {
		return EntityRecord{}, false
	}
	return EntityRecord{
		EntityID:    id,
		DisplayName: r.Get(RegistryFieldDisplayName),
		Region:      r.Get(RegistryFieldRegion),
		Address:     r.Get(RegistryFieldAddress),
		Category:    r.Optional(RegistryFieldCategory),
	}, true
}

// ClientRecord 内部台账中的客户名称，不保证唯一或规范
type ClientRecord struct {
	ClientName string `json:"client_name"`
}

// MatchResult 客户名称与登记实体的匹配结果
type MatchResult struct {
	ID                 uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	ClientName         string    `json:"client_name" gorm:"not null;size:255;index"`
	MatchedDisplayName *string   `json:"matched_display_name" gorm:"size:255"`
	MatchedEntityID    *string   `json:"matched_entity_id" gorm:"type:varchar(128);index"`
	Score              *float64  `json:"score"`
	CandidateIndex     int       `json:"-" gorm:"-"`
	RunID              string    `json:"run_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName 指定表名
func (MatchResult) TableName() string {
	return "match_results"
}

// Matched 是否匹配到登记实体
func (m MatchResult) Matched() bool {
	return m.MatchedEntityID != nil
}
