package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
	"github.com/icedo724/medi/service/rate_limiter"
)

func failingSource(name string) Source {
	return NewSource(name, func(ctx context.Context, entityID string) ([]models.Record, error) {
		return nil, errors.New("malformed response")
	})
}

// 每个实体返回两条明细
func fullSource(name string) Source {
	return NewSource(name, func(ctx context.Context, entityID string) ([]models.Record, error) {
		return []models.Record{
			{"ykiho": entityID, "row": "1"},
			{"ykiho": entityID, "row": "2"},
		}, nil
	})
}

// TestAggregate_Isolation 测试一个数据源全部失败不影响另一个数据源
func TestAggregate_Isolation(t *testing.T) {
	agg, err := NewAggregator([]Source{failingSource("equip_info"), fullSource("dgsbjt_info")}, Options{})
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []string{"E1", "E2", "E3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"equip_info", "dgsbjt_info"}, result.Sources)

	details := result.Tables["dgsbjt_info"]
	require.Len(t, details, 6)
	assert.Equal(t, "E1", details[0].EntityID)
	assert.Equal(t, "1", details[0].Attributes["row"])
	assert.Equal(t, "2", details[1].Attributes["row"])
	assert.Equal(t, "E3", details[5].EntityID)
	assert.Equal(t, "dgsbjt_info", details[0].Source)
	assert.Empty(t, result.NoData["dgsbjt_info"])
	assert.Equal(t, 0, result.Failures["dgsbjt_info"])

	assert.Empty(t, result.Tables["equip_info"])
	assert.Equal(t, []string{"E1", "E2", "E3"}, result.NoData["equip_info"])
	assert.Equal(t, 3, result.Failures["equip_info"])
	assert.Equal(t, 3, result.Stats["equip_info"].NoData)
}

// TestAggregate_NoDataIsNotFailure 测试空结果记为无数据而非失败
func TestAggregate_NoDataIsNotFailure(t *testing.T) {
	sparse := NewSource("nursing_info", func(ctx context.Context, entityID string) ([]models.Record, error) {
		if entityID == "E2" {
			return nil, nil
		}
		return []models.Record{{"grade": "1"}}, nil
	})
	agg, err := NewAggregator([]Source{sparse}, Options{})
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []string{"E1", "E2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"E2"}, result.NoData["nursing_info"])
	assert.Equal(t, 0, result.Failures["nursing_info"])
	assert.Equal(t, &SourceStats{Entities: 2, WithData: 1, NoData: 1, Records: 1}, result.Stats["nursing_info"])
}

// TestAggregate_DedupesEntities 测试实体去重并保持首次出现顺序
func TestAggregate_DedupesEntities(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	src := NewSource("facility_info", func(ctx context.Context, entityID string) ([]models.Record, error) {
		mu.Lock()
		calls = append(calls, entityID)
		mu.Unlock()
		return []models.Record{{"id": entityID}}, nil
	})
	agg, err := NewAggregator([]Source{src}, Options{})
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []string{"B", "A", "B", " ", "C", "A"})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A", "C"}, calls)
	assert.Equal(t, []string{"B", "A", "C"}, result.Entities)
}

// TestAggregate_Workers 测试并发时输出顺序与顺序执行一致
func TestAggregate_Workers(t *testing.T) {
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("E%02d", i)
	}
	sources := []Source{fullSource("a"), failingSource("b")}

	seq, err := NewAggregator(sources, Options{})
	require.NoError(t, err)
	expected, err := seq.Aggregate(context.Background(), ids)
	require.NoError(t, err)

	par, err := NewAggregator(sources, Options{Workers: 8, Pacer: rate_limiter.NewTokenPacer(0, 1)})
	require.NoError(t, err)
	actual, err := par.Aggregate(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, expected.Entities, actual.Entities)
	assert.Equal(t, expected.NoData, actual.NoData)
	assert.Equal(t, expected.Failures, actual.Failures)
	require.Len(t, actual.Tables["a"], 80)
	for i, d := range actual.Tables["a"] {
		assert.Equal(t, expected.Tables["a"][i].EntityID, d.EntityID)
		assert.Equal(t, expected.Tables["a"][i].Attributes, d.Attributes)
	}
}

// TestAggregate_PacesEveryCall 测试每次调用之间都经过节流器
func TestAggregate_PacesEveryCall(t *testing.T) {
	pacer := &countingPacer{}
	agg, err := NewAggregator([]Source{fullSource("a"), fullSource("b")}, Options{Pacer: pacer})
	require.NoError(t, err)

	_, err = agg.Aggregate(context.Background(), []string{"E1", "E2", "E3"})
	require.NoError(t, err)
	assert.Equal(t, 5, pacer.count(), "6次调用之间等待5次")
}

// TestAggregate_Cancelled 测试取消时返回已完成的实体
func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource("a", func(c context.Context, entityID string) ([]models.Record, error) {
		if entityID == "E2" {
			cancel()
		}
		return []models.Record{{"id": entityID}}, nil
	})
	agg, err := NewAggregator([]Source{src}, Options{})
	require.NoError(t, err)

	result, err := agg.Aggregate(ctx, []string{"E1", "E2", "E3"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, []string{"E1", "E2"}, result.Entities)
}

// TestNewAggregator_Validation 测试数据源校验
func TestNewAggregator_Validation(t *testing.T) {
	_, err := NewAggregator(nil, Options{})
	assert.ErrorIs(t, err, meta.ErrInvalidOption)

	_, err = NewAggregator([]Source{fullSource("a"), fullSource("a")}, Options{})
	assert.ErrorIs(t, err, meta.ErrInvalidOption)

	_, err = NewAggregator([]Source{fullSource(" ")}, Options{})
	assert.ErrorIs(t, err, meta.ErrInvalidOption)
}

// TestAggregate_Metrics 测试指标上报不影响结果
func TestAggregate_Metrics(t *testing.T) {
	agg, err := NewAggregator([]Source{fullSource("a"), failingSource("b")}, Options{Metrics: monitoring.NewMetricsCollector(nil)})
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []string{"E1"})
	require.NoError(t, err)
	assert.Len(t, result.Summary(), 2)
}

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	return ctx.Err()
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}
