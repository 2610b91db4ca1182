package models

import "time"

// DetailRecord 单个数据源下某实体的一条明细，同一实体可有多条
type DetailRecord struct {
	ID         uint       `json:"-" gorm:"primaryKey;autoIncrement"`
	Source     string     `json:"source" gorm:"-"`
	EntityID   string     `json:"entity_id" gorm:"not null;type:varchar(128);index"`
	Attributes Attributes `json:"attributes" gorm:"type:jsonb"`
	RunID      string     `json:"run_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewDetailRecord 从接口记录构造明细，entity_id 作为回指字段单独保存
func NewDetailRecord(source, entityID string, r Record) DetailRecord {
	attrs := make(Attributes, len(r))
	for k, v := range r {
		attrs[k] = v
	}
	return DetailRecord{
		Source:     source,
		EntityID:   entityID,
		Attributes: attrs,
	}
}
