/*
 * @module service/rfm/rfm
 * @description RFM分群引擎：由交易日志计算最近购买天数、购买次数、购买金额，五分位打分并分群
 * @architecture 纯计算 - 每次运行整体重算，无增量
 * @stateFlow 按实体分组 -> R/F/M指标 -> 本次人群五分位 -> 分数求和 -> 阈值分群
 * @rules
 *   - 分位点只由本次运行的人群决定，人群变化时同一实体的分数可能变化
 *   - 最近天数越小R分越高，F和M数值越大分数越高
 *   - 某指标不同取值少于5个时仍然打分，但给出退化告警
 *   - 金额可为负（退款），不做特殊处理
 * @dependencies github.com/shopspring/decimal
 * @refs service/pipeline
 */

package rfm

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
)

// 指标名称
const (
	MetricRecency   = "recency"
	MetricFrequency = "frequency"
	MetricMonetary  = "monetary"
)

// 告警类型
const (
	WarningDegenerateBinning = "degenerate_binning"
	WarningFutureTransaction = "future_transaction"
	WarningDuplicateOrderID  = "duplicate_order_id"
	WarningMissingEntityID   = "missing_entity_id"
)

// 分群阈值，从高到低
var thresholds = []struct {
	min     int
	segment string
}{
	{13, meta.SegmentVIP},
	{9, meta.SegmentLoyal},
	{5, meta.SegmentPotential},
	{0, meta.SegmentRisk},
}

// Warning 非致命告警
type Warning struct {
	Code    string `json:"code"`
	Metric  string `json:"metric,omitempty"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Result 分群结果
type Result struct {
	ReferenceDate time.Time            `json:"reference_date"`
	Records       []models.RFMRecord   `json:"-"`
	Edges         map[string][]float64 `json:"edges"`
	Distribution  map[string]int       `json:"distribution"`
	Warnings      []Warning            `json:"warnings"`
}

// HasWarning 是否包含指定类型的告警
func (r *Result) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Options 引擎参数
type Options struct {
	Metrics *monitoring.MetricsCollector
}

// Engine RFM分群引擎
type Engine struct {
	opts Options
}

// NewEngine 创建分群引擎
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Segment 使用默认参数执行分群
func Segment(transactions []models.TransactionRecord, referenceDate time.Time) (*Result, error) {
	return NewEngine(Options{}).Segment(transactions, referenceDate)
}

type aggregate struct {
	latest    time.Time
	frequency int
	monetary  decimal.Decimal
}

// Segment 计算每个实体的RFM记录，按entity_id升序输出
func (e *Engine) Segment(transactions []models.TransactionRecord, referenceDate time.Time) (*Result, error) {
	if referenceDate.IsZero() {
		return nil, fmt.Errorf("%w: 缺少参考日期", meta.ErrInvalidOption)
	}
	ref := truncateDay(referenceDate)

	result := &Result{
		ReferenceDate: ref,
		Edges:         make(map[string][]float64, 3),
		Distribution:  make(map[string]int, len(meta.SegmentLabels)),
	}
	for _, label := range meta.SegmentLabels {
		result.Distribution[label] = 0
	}

	groups := make(map[string]*aggregate)
	orders := make(map[string]struct{}, len(transactions))
	var missingID, duplicates int

	for _, tx := range transactions {
		id := strings.TrimSpace(tx.EntityID)
		if id == "" {
			missingID++
			continue
		}
		if tx.OrderID != "" {
			if _, dup := orders[tx.OrderID]; dup {
				duplicates++
			}
			orders[tx.OrderID] = struct{}{}
		}

		g, ok := groups[id]
		if !ok {
			g = &aggregate{latest: tx.TransactionDate}
			groups[id] = g
		}
		if tx.TransactionDate.After(g.latest) {
			g.latest = tx.TransactionDate
		}
		g.frequency++
		g.monetary = g.monetary.Add(tx.Amount)
	}

	if missingID > 0 {
		e.warn(result, Warning{Code: WarningMissingEntityID, Count: missingID, Message: "交易记录缺少entity_id，已忽略"})
	}
	if duplicates > 0 {
		e.warn(result, Warning{Code: WarningDuplicateOrderID, Count: duplicates, Message: "存在重复的order_id，按原样计数"})
	}

	if len(groups) == 0 {
		slog.Warn("交易日志为空，没有可分群的实体")
		return result, nil
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]models.RFMRecord, len(ids))
	recency := make([]float64, len(ids))
	frequency := make([]float64, len(ids))
	monetary := make([]float64, len(ids))
	var future int

	for i, id := range ids {
		g := groups[id]
		days := int(math.Round(ref.Sub(truncateDay(g.latest)).Hours() / 24))
		if days < 0 {
			future++
			days = 0
		}
		records[i] = models.RFMRecord{
			EntityID:    id,
			RecencyDays: days,
			Frequency:   g.frequency,
			Monetary:    g.monetary,
		}
		recency[i] = float64(days)
		frequency[i] = float64(g.frequency)
		monetary[i] = g.monetary.InexactFloat64()
	}

	if future > 0 {
		e.warn(result, Warning{Code: WarningFutureTransaction, Count: future, Message: "最近交易晚于参考日期，最近天数按0处理"})
	}

	rEdges := e.edges(result, MetricRecency, recency)
	fEdges := e.edges(result, MetricFrequency, frequency)
	mEdges := e.edges(result, MetricMonetary, monetary)

	for i := range records {
		rec := &records[i]
		rec.RScore = Bins + 1 - BinOf(recency[i], rEdges)
		rec.FScore = BinOf(frequency[i], fEdges)
		rec.MScore = BinOf(monetary[i], mEdges)
		rec.TotalScore = rec.RScore + rec.FScore + rec.MScore
		rec.Segment = Classify(rec.TotalScore)
		result.Distribution[rec.Segment]++
	}
	result.Records = records

	if e.opts.Metrics != nil {
		e.opts.Metrics.SetSegmentDistribution(result.Distribution)
	}
	slog.Info("RFM分群完成",
		"entities", len(records),
		"reference_date", ref.Format("2006-01-02"),
		"vip", result.Distribution[meta.SegmentVIP],
		"loyal", result.Distribution[meta.SegmentLoyal],
		"potential", result.Distribution[meta.SegmentPotential],
		"risk", result.Distribution[meta.SegmentRisk],
		"warnings", len(result.Warnings))

	return result, nil
}

// edges 计算指标分位点，不同取值不足时记录退化告警
func (e *Engine) edges(result *Result, metric string, values []float64) []float64 {
	edges := QuantileEdges(values)
	result.Edges[metric] = edges

	if distinct := DistinctCount(values); distinct < Bins {
		e.warn(result, Warning{
			Code:    WarningDegenerateBinning,
			Metric:  metric,
			Count:   distinct,
			Message: fmt.Sprintf("%s 只有%d个不同取值，分箱退化，分数区分度降低", metric, distinct),
		})
		if e.opts.Metrics != nil {
			e.opts.Metrics.ObserveDegenerateBinning(metric)
		}
	}
	return edges
}

func (e *Engine) warn(result *Result, w Warning) {
	result.Warnings = append(result.Warnings, w)
	slog.Warn(w.Message, "code", w.Code, "metric", w.Metric, "count", w.Count)
}

// truncateDay 取各自时区下的日历日期，统一为UTC零点，天数差只比较日期
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
