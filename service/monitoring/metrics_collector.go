/*
 * @module service/monitoring/metrics_collector
 * @description 流水线指标收集器：分页采集、明细调用、名称匹配、RFM分群与运行耗时
 * @architecture 分层架构 - 可观测性层
 * @stateFlow 各阶段上报 -> Prometheus注册表 -> /metrics 暴露
 * @rules 指标仅用于观测，不参与业务判断
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go, service/pipeline
 */

package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标结果标签值
const (
	OutcomeSuccess   = "success"
	OutcomeEmpty     = "empty"
	OutcomeFailure   = "failure"
	OutcomeData      = "data"
	OutcomeNoData    = "no_data"
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
)

// MetricsCollector 流水线指标收集器
type MetricsCollector struct {
	pagesTotal     *prometheus.CounterVec
	itemsTotal     prometheus.Counter
	detailCalls    *prometheus.CounterVec
	matchResults   *prometheus.CounterVec
	segmentSize    *prometheus.GaugeVec
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	binningWarning *prometheus.CounterVec
}

var (
	defaultCollector *MetricsCollector
	defaultOnce      sync.Once
)

// Default 返回注册到全局Prometheus注册表的收集器
func Default() *MetricsCollector {
	defaultOnce.Do(func() {
		defaultCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// NewMetricsCollector 创建指标收集器并注册到指定注册表
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	c := &MetricsCollector{
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medi_collector_pages_total",
			Help: "分页采集调用次数（按结果）",
		}, []string{"outcome"}),
		itemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medi_collector_items_total",
			Help: "分页采集获得的记录数",
		}),
		detailCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medi_detail_calls_total",
			Help: "明细接口调用次数（按数据源和结果）",
		}, []string{"source", "outcome"}),
		matchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medi_match_results_total",
			Help: "名称匹配结果数",
		}, []string{"outcome"}),
		segmentSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medi_rfm_segment_entities",
			Help: "最近一次RFM分群各分群的实体数",
		}, []string{"segment"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medi_pipeline_runs_total",
			Help: "流水线运行次数（按最终状态）",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medi_stage_duration_seconds",
			Help:    "各阶段耗时",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 3600},
		}, []string{"stage"}),
		binningWarning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medi_rfm_degenerate_binning_total",
			Help: "分位数分箱退化告警次数（按指标）",
		}, []string{"metric"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.pagesTotal,
			c.itemsTotal,
			c.detailCalls,
			c.matchResults,
			c.segmentSize,
			c.runsTotal,
			c.stageDuration,
			c.binningWarning,
		)
	}
	return c
}

// ObservePage 记录一次分页调用
func (c *MetricsCollector) ObservePage(outcome string, items int) {
	c.pagesTotal.WithLabelValues(outcome).Inc()
	if items > 0 {
		c.itemsTotal.Add(float64(items))
	}
}

// ObserveDetailCall 记录一次明细调用
func (c *MetricsCollector) ObserveDetailCall(source, outcome string) {
	c.detailCalls.WithLabelValues(source, outcome).Inc()
}

// ObserveMatches 记录匹配结果数量
func (c *MetricsCollector) ObserveMatches(matched, unmatched int) {
	c.matchResults.WithLabelValues(OutcomeMatched).Add(float64(matched))
	c.matchResults.WithLabelValues(OutcomeUnmatched).Add(float64(unmatched))
}

// SetSegmentDistribution 覆盖各分群实体数
func (c *MetricsCollector) SetSegmentDistribution(distribution map[string]int) {
	c.segmentSize.Reset()
	for segment, count := range distribution {
		c.segmentSize.WithLabelValues(segment).Set(float64(count))
	}
}

// ObserveDegenerateBinning 记录分箱退化告警
func (c *MetricsCollector) ObserveDegenerateBinning(metric string) {
	c.binningWarning.WithLabelValues(metric).Inc()
}

// ObserveRun 记录一次运行的最终状态
func (c *MetricsCollector) ObserveRun(status string) {
	c.runsTotal.WithLabelValues(status).Inc()
}

// ObserveStage 记录阶段耗时
func (c *MetricsCollector) ObserveStage(stage string, elapsed time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
