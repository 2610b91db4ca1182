/*
 * @module service/models/transaction
 * @description 交易记录与RFM评分结果模型
 * @architecture DDD领域驱动设计 - 实体模型
 * @stateFlow 交易日志 -> 按实体聚合 -> RFMRecord
 * @rules RFM 结果每次全量重算，不做增量更新；金额可为负（退款）
 * @dependencies github.com/shopspring/decimal
 * @refs service/rfm
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord 交易日志中的一条订单
type TransactionRecord struct {
	EntityID        string          `json:"entity_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	OrderID         string          `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
}

// RFMRecord 每个实体的RFM指标、分数与分群
type RFMRecord struct {
	EntityID    string          `json:"entity_id" gorm:"primaryKey;type:varchar(128)"`
	RecencyDays int             `json:"recency_days" gorm:"not null"`
	Frequency   int             `json:"frequency" gorm:"not null"`
	Monetary    decimal.Decimal `json:"monetary" gorm:"type:decimal(20,2);not null"`
	RScore      int             `json:"r_score" gorm:"not null"`
	FScore      int             `json:"f_score" gorm:"not null"`
	MScore      int             `json:"m_score" gorm:"not null"`
	TotalScore  int             `json:"total_score" gorm:"not null;index"`
	Segment     string          `json:"segment" gorm:"not null;size:20;index"`
	RunID       string          `json:"run_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName 指定表名
func (RFMRecord) TableName() string {
	return "rfm_records"
}
