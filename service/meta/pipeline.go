/*
 * @module service/meta/pipeline
 * @description 流水线元数据常量：阶段名称、运行状态、客户分群标签、停止原因
 * @architecture 元数据层 - 常量与校验函数
 * @stateFlow 运行状态：pending -> running -> success/failed
 * @rules 分群标签有序，阈值从高到低匹配
 * @dependencies errors
 * @refs service/pipeline, service/rfm
 */

package meta

import "errors"

// 流水线阶段，按执行顺序排列
const (
	StageCollect   = "collect"
	StageResolve   = "resolve"
	StageAggregate = "aggregate"
	StageSegment   = "segment"
)

// PipelineStages 所有阶段的固定执行顺序
var PipelineStages = []string{StageCollect, StageResolve, StageAggregate, StageSegment}

// IsValidStage 检查阶段名称是否合法
func IsValidStage(stage string) bool {
	for _, s := range PipelineStages {
		if s == stage {
			return true
		}
	}
	return false
}

// 流水线运行状态
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// 客户分群标签
const (
	SegmentVIP       = "VIP"
	SegmentLoyal     = "Loyal"
	SegmentPotential = "Potential"
	SegmentRisk      = "Risk"
)

// SegmentLabels 分群标签，从高到低
var SegmentLabels = []string{SegmentVIP, SegmentLoyal, SegmentPotential, SegmentRisk}

// SegmentDisplayNames 导出时使用的韩文标签
var SegmentDisplayNames = map[string]string{
	SegmentVIP:       "VIP (최우수)",
	SegmentLoyal:     "Loyal (우수)",
	SegmentPotential: "Potential (잠재)",
	SegmentRisk:      "Risk (이탈위험)",
}

// 采集停止原因
const (
	StopReasonMaxPages  = "max_pages"
	StopReasonExhausted = "exhausted"
	StopReasonFailure   = "failure"
	StopReasonCancelled = "cancelled"
)

// 前置条件错误，阶段在开始前即终止
var (
	ErrMissingInput  = errors.New("缺少必需的输入表")
	ErrMissingColumn = errors.New("输入表缺少必需的列")
	ErrInvalidOption = errors.New("参数配置无效")
)
