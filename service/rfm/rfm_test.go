package rfm

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tx(entity, date, order string, amount int64) models.TransactionRecord {
	return models.TransactionRecord{
		EntityID:        entity,
		TransactionDate: day(date),
		OrderID:         order,
		Amount:          decimal.NewFromInt(amount),
	}
}

func byEntity(records []models.RFMRecord) map[string]models.RFMRecord {
	out := make(map[string]models.RFMRecord, len(records))
	for _, r := range records {
		out[r.EntityID] = r
	}
	return out
}

// TestSegment_EndToEnd 测试五笔交易三个实体的完整场景
func TestSegment_EndToEnd(t *testing.T) {
	transactions := []models.TransactionRecord{
		tx("A", "2025-01-01", "1", 100000),
		tx("B", "2025-02-01", "2", 200000),
		tx("C", "2024-12-01", "3", 50000),
		tx("A", "2025-03-01", "4", 150000),
		tx("B", "2025-01-15", "5", 30000),
	}

	result, err := Segment(transactions, day("2025-06-30"))
	require.NoError(t, err)

	require.Len(t, result.Records, 3)
	assert.Equal(t, "A", result.Records[0].EntityID)
	assert.Equal(t, "B", result.Records[1].EntityID)
	assert.Equal(t, "C", result.Records[2].EntityID)

	rec := byEntity(result.Records)
	assert.Equal(t, 2, rec["A"].Frequency)
	assert.Equal(t, 2, rec["B"].Frequency)
	assert.Equal(t, 1, rec["C"].Frequency)
	assert.True(t, decimal.NewFromInt(250000).Equal(rec["A"].Monetary))
	assert.Equal(t, 121, rec["A"].RecencyDays)
	assert.Equal(t, 149, rec["B"].RecencyDays)
	assert.Equal(t, 211, rec["C"].RecencyDays)

	assert.True(t, result.HasWarning(WarningDegenerateBinning))
	metrics := map[string]bool{}
	for _, w := range result.Warnings {
		if w.Code == WarningDegenerateBinning {
			metrics[w.Metric] = true
		}
	}
	assert.Equal(t, map[string]bool{MetricRecency: true, MetricFrequency: true, MetricMonetary: true}, metrics)
}

// TestSegment_TotalRange 测试总分范围与分群标签
func TestSegment_TotalRange(t *testing.T) {
	var transactions []models.TransactionRecord
	start := day("2024-01-01")
	order := 0
	for i := 0; i < 23; i++ {
		entity := string(rune('A' + i))
		for j := 0; j <= i%7; j++ {
			order++
			transactions = append(transactions, models.TransactionRecord{
				EntityID:        entity,
				TransactionDate: start.AddDate(0, 0, i*11+j),
				OrderID:         decimal.NewFromInt(int64(order)).String(),
				Amount:          decimal.NewFromInt(int64((i*37)%101*1000 - 5000)),
			})
		}
	}

	result, err := Segment(transactions, day("2025-01-01"))
	require.NoError(t, err)
	require.Len(t, result.Records, 23)

	for _, r := range result.Records {
		assert.GreaterOrEqual(t, r.TotalScore, 3)
		assert.LessOrEqual(t, r.TotalScore, 15)
		assert.Equal(t, r.RScore+r.FScore+r.MScore, r.TotalScore)
		assert.Contains(t, meta.SegmentLabels, r.Segment)
		assert.Equal(t, Classify(r.TotalScore), r.Segment)
	}
	sum := 0
	for _, n := range result.Distribution {
		sum += n
	}
	assert.Equal(t, 23, sum)
	assert.False(t, result.HasWarning(WarningDegenerateBinning))
}

// TestSegment_RecencyMonotonic 测试频次与金额相同时，最近交易越晚R分不低
func TestSegment_RecencyMonotonic(t *testing.T) {
	transactions := []models.TransactionRecord{
		tx("X", "2025-06-01", "1", 1000),
		tx("Y", "2025-01-01", "2", 1000),
		tx("P", "2025-03-01", "3", 5000),
		tx("Q", "2024-11-01", "4", 7000),
		tx("S", "2025-05-01", "5", 9000),
		tx("T", "2024-08-01", "6", 3000),
	}

	result, err := Segment(transactions, day("2025-06-30"))
	require.NoError(t, err)

	rec := byEntity(result.Records)
	assert.Equal(t, rec["X"].Frequency, rec["Y"].Frequency)
	assert.True(t, rec["X"].Monetary.Equal(rec["Y"].Monetary))
	assert.GreaterOrEqual(t, rec["X"].RScore, rec["Y"].RScore)
	assert.Equal(t, 5, rec["X"].RScore)
}

// TestSegment_PopulationRelative 测试分位点随人群变化
func TestSegment_PopulationRelative(t *testing.T) {
	base := []models.TransactionRecord{
		tx("A", "2025-06-01", "1", 100),
		tx("B", "2025-06-01", "2", 200),
		tx("C", "2025-06-01", "3", 300),
		tx("D", "2025-06-01", "4", 400),
		tx("E", "2025-06-01", "5", 500),
	}
	first, err := Segment(base, day("2025-06-30"))
	require.NoError(t, err)
	assert.Equal(t, 5, byEntity(first.Records)["E"].MScore)

	bigger := append(append([]models.TransactionRecord(nil), base...),
		tx("F", "2025-06-01", "6", 10000),
		tx("G", "2025-06-01", "7", 20000),
		tx("H", "2025-06-01", "8", 30000),
	)
	second, err := Segment(bigger, day("2025-06-30"))
	require.NoError(t, err)

	assert.Equal(t, 500, int(byEntity(second.Records)["E"].Monetary.IntPart()))
	assert.Less(t, byEntity(second.Records)["E"].MScore, 5, "同样的金额在更大人群中分数下降")
}

// TestSegment_ClampsFutureTransactions 测试晚于参考日期的交易
func TestSegment_ClampsFutureTransactions(t *testing.T) {
	result, err := Segment([]models.TransactionRecord{
		tx("A", "2025-07-10", "1", 100),
		tx("B", "2025-06-01", "2", 100),
	}, day("2025-06-30"))
	require.NoError(t, err)

	rec := byEntity(result.Records)
	assert.Equal(t, 0, rec["A"].RecencyDays)
	assert.Equal(t, 29, rec["B"].RecencyDays)
	assert.True(t, result.HasWarning(WarningFutureTransaction))
}

// TestSegment_RecencyIgnoresZone 参考日期带时区时按日历日期计算最近天数
func TestSegment_RecencyIgnoresZone(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
	}{
		{"UTC零点", day("2025-06-30")},
		{"西四区中午", time.Date(2025, 6, 30, 12, 0, 0, 0, time.FixedZone("EDT", -4*3600))},
		{"西四区深夜", time.Date(2025, 6, 30, 23, 30, 0, 0, time.FixedZone("EDT", -4*3600))},
		{"东九区凌晨", time.Date(2025, 6, 30, 1, 0, 0, 0, time.FixedZone("KST", 9*3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Segment([]models.TransactionRecord{
				tx("A", "2025-06-29", "1", 100),
				tx("B", "2025-06-01", "2", 100),
			}, tt.ref)
			require.NoError(t, err)

			rec := byEntity(result.Records)
			assert.Equal(t, 1, rec["A"].RecencyDays)
			assert.Equal(t, 29, rec["B"].RecencyDays)
			assert.False(t, result.HasWarning(WarningFutureTransaction))
			assert.Equal(t, day("2025-06-30"), result.ReferenceDate)
		})
	}
}

// TestSegment_DuplicateOrders 测试重复订单号按原样计数
func TestSegment_DuplicateOrders(t *testing.T) {
	result, err := Segment([]models.TransactionRecord{
		tx("A", "2025-06-01", "1", 100),
		tx("A", "2025-06-02", "1", 100),
		tx("", "2025-06-02", "2", 100),
	}, day("2025-06-30"))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 2, result.Records[0].Frequency)
	assert.True(t, result.HasWarning(WarningDuplicateOrderID))
	assert.True(t, result.HasWarning(WarningMissingEntityID))
}

// TestSegment_SingleEntity 测试单个实体不报错
func TestSegment_SingleEntity(t *testing.T) {
	engine := NewEngine(Options{Metrics: monitoring.NewMetricsCollector(nil)})
	result, err := engine.Segment([]models.TransactionRecord{tx("A", "2025-06-01", "1", -500)}, day("2025-06-30"))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	r := result.Records[0]
	assert.Equal(t, 5, r.RScore)
	assert.Equal(t, 1, r.FScore)
	assert.Equal(t, 1, r.MScore)
	assert.Equal(t, meta.SegmentPotential, r.Segment)
	assert.Equal(t, 1, result.Distribution[meta.SegmentPotential])
}

// TestSegment_EmptyAndInvalid 测试空输入与缺少参考日期
func TestSegment_EmptyAndInvalid(t *testing.T) {
	result, err := Segment(nil, day("2025-06-30"))
	require.NoError(t, err)
	assert.Empty(t, result.Records)

	_, err = Segment(nil, time.Time{})
	assert.ErrorIs(t, err, meta.ErrInvalidOption)
}

// TestQuantileEdges 测试分位点与分箱
func TestQuantileEdges(t *testing.T) {
	edges := QuantileEdges([]float64{2, 2, 1})
	require.Len(t, edges, 6)
	expected := []float64{1, 1.4, 1.8, 2, 2, 2}
	for i := range expected {
		assert.InDelta(t, expected[i], edges[i], 1e-9)
	}
	assert.Equal(t, 1, BinOf(1, edges))
	assert.Equal(t, 3, BinOf(2, edges))

	edges = QuantileEdges([]float64{10, 20, 30, 40, 50})
	assert.InDeltaSlice(t, []float64{10, 18, 26, 34, 42, 50}, edges, 1e-9)
	assert.Equal(t, 1, BinOf(10, edges))
	assert.Equal(t, 2, BinOf(20, edges))
	assert.Equal(t, 5, BinOf(50, edges))
}

// TestClassify 测试阈值边界
func TestClassify(t *testing.T) {
	tests := []struct {
		total    int
		expected string
	}{
		{15, meta.SegmentVIP},
		{13, meta.SegmentVIP},
		{12, meta.SegmentLoyal},
		{9, meta.SegmentLoyal},
		{8, meta.SegmentPotential},
		{5, meta.SegmentPotential},
		{4, meta.SegmentRisk},
		{3, meta.SegmentRisk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.total), "total=%d", tt.total)
	}
}
