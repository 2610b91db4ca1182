package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/icedo724/medi/service/aggregator"
	"github.com/icedo724/medi/service/collector"
	"github.com/icedo724/medi/service/datasource"
	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/rate_limiter"
	"github.com/icedo724/medi/service/resolver"
	"github.com/icedo724/medi/service/rfm"
	"github.com/icedo724/medi/service/tabular"
)

// 节流器在Redis中的键
const (
	registryPacerKey = "medi:pacer:registry"
	detailPacerKey   = "medi:pacer:detail"
)

func (r *Runner) path(name string) string {
	return filepath.Join(r.cfg.DataDir, name)
}

func (r *Runner) labels() map[string]string {
	if !r.cfg.LocalizeHeaders || r.cfg.Sources == nil {
		return nil
	}
	return r.cfg.Sources.Labels
}

func (r *Runner) loadSources() (*Sources, error) {
	sources, err := r.sources(r.cfg)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		return nil, fmt.Errorf("%w: 外部接口未配置", meta.ErrInvalidOption)
	}
	return sources, nil
}

func (r *Runner) newPacer(interval time.Duration, key string) (rate_limiter.Pacer, func(), error) {
	pacer, err := rate_limiter.NewPacer(r.cfg.PacerOptions(interval, key))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", meta.ErrInvalidOption, err)
	}
	release := func() {}
	if c, ok := pacer.(io.Closer); ok {
		release = func() {
			if err := c.Close(); err != nil {
				slog.Warn("关闭节流器失败", "key", key, "error", err)
			}
		}
	}
	return pacer, release, nil
}

// collect 分页采集登记实体并写出登记表
func (r *Runner) collect(ctx context.Context, runID string) (map[string]interface{}, error) {
	sources, err := r.loadSources()
	if err != nil {
		return nil, err
	}
	if sources.Registry == nil {
		return nil, fmt.Errorf("%w: 未配置登记接口", meta.ErrInvalidOption)
	}

	pacer, release, err := r.newPacer(r.cfg.PagePace, registryPacerKey)
	if err != nil {
		return nil, err
	}
	defer release()

	c := collector.NewCollector(collector.Options{
		MaxPages: r.cfg.MaxPages,
		PageSize: r.cfg.PageSize,
		Pacer:    pacer,
		Metrics:  r.metrics,
	})
	result, err := c.Collect(ctx, sources.Registry)
	if err != nil {
		return nil, err
	}

	registry := collector.ToEntities(result.Items)
	summary := result.Summary()
	summary["entities"] = len(registry.Entities)
	summary["duplicates"] = registry.Duplicates
	summary["missing_id"] = registry.MissingID

	if err := tabular.WriteRegistry(r.path(tabular.RegistryFile), registry.Entities, nil); err != nil {
		return summary, err
	}
	if r.outputs != nil {
		if err := r.outputs.ReplaceEntities(ctx, runID, registry.Entities); err != nil {
			return summary, err
		}
	}
	if result.StopReason == meta.StopReasonCancelled {
		return summary, fmt.Errorf("分页采集被取消: %s", result.LastError)
	}
	return summary, nil
}

// resolve 将客户台账名称匹配到登记实体并写出匹配表
func (r *Runner) resolve(ctx context.Context, runID string) (map[string]interface{}, error) {
	entities, err := tabular.ReadRegistry(r.path(tabular.RegistryFile))
	if err != nil {
		return nil, err
	}
	clients, err := tabular.ReadClients(r.path(tabular.ClientFile))
	if err != nil {
		return nil, err
	}

	processor, ok := resolver.GetProcessor(r.cfg.MatchProcessor)
	if !ok {
		return nil, fmt.Errorf("%w: 未知的名称预处理方式 %q", meta.ErrInvalidOption, r.cfg.MatchProcessor)
	}
	res, err := resolver.NewResolver(entities, resolver.Options{
		MinScore:  r.cfg.MatchMinScore,
		Processor: processor,
		Metrics:   r.metrics,
	})
	if err != nil {
		return nil, err
	}

	results, sum, err := res.ResolveAll(ctx, clients)
	if err != nil {
		return nil, err
	}
	summary := map[string]interface{}{
		"total":     sum.Total,
		"matched":   sum.Matched,
		"unmatched": sum.Unmatched,
		"entities":  len(entities),
	}

	if err := tabular.WriteMatches(r.path(tabular.MatchFile), results); err != nil {
		return summary, err
	}
	if r.outputs != nil {
		if err := r.outputs.ReplaceMatches(ctx, runID, results); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// aggregate 对登记实体逐个查询各明细接口，每个数据源写出一张明细表
func (r *Runner) aggregate(ctx context.Context, runID string) (map[string]interface{}, error) {
	entities, err := tabular.ReadRegistry(r.path(tabular.RegistryFile))
	if err != nil {
		return nil, err
	}
	sources, err := r.loadSources()
	if err != nil {
		return nil, err
	}

	var barcodes []string
	if sources.UDI != nil {
		barcodes, err = r.readBarcodes()
		if err != nil {
			return nil, err
		}
	}

	pacer, release, err := r.newPacer(r.cfg.DetailPace, detailPacerKey)
	if err != nil {
		return nil, err
	}
	defer release()

	summary := map[string]interface{}{}

	if len(sources.Details) > 0 {
		ids := make([]string, len(entities))
		for i, e := range entities {
			ids[i] = e.EntityID
		}
		result, err := r.runAggregator(ctx, runID, sources.Details, ids, pacer)
		if result != nil {
			summary["details"] = result.Summary()
		}
		if err != nil {
			return summary, err
		}
	}

	if sources.UDI != nil {
		result, err := r.runAggregator(ctx, runID, []aggregator.Source{sources.UDI}, barcodes, pacer)
		if result != nil {
			summary["udi"] = result.Summary()
		}
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) runAggregator(ctx context.Context, runID string, sources []aggregator.Source, ids []string, pacer rate_limiter.Pacer) (*aggregator.Result, error) {
	agg, err := aggregator.NewAggregator(sources, aggregator.Options{
		Workers: r.cfg.AggregatorWorkers,
		Pacer:   pacer,
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}

	result, aggErr := agg.Aggregate(ctx, ids)
	if result == nil {
		return nil, aggErr
	}

	// 被取消时也写出已完成部分
	for _, source := range result.Sources {
		details := result.Tables[source]
		path, err := tabular.WriteDetails(r.cfg.DataDir, source, details, r.labels())
		if err != nil {
			return result, err
		}
		slog.Info("明细表已写出", "source", source, "records", len(details), "path", path)

		if r.outputs != nil {
			if _, err := r.outputs.ReplaceDetails(ctx, runID, source, details); err != nil {
				return result, err
			}
		}
	}
	return result, aggErr
}

func (r *Runner) readBarcodes() ([]string, error) {
	udi := r.cfg.Sources.UDI
	table, err := tabular.ReadCSV(r.path(udi.InputFile))
	if err != nil {
		return nil, err
	}
	column := udi.Column
	if column == "" {
		column = datasource.UDIFieldCode
	}
	if err := table.Require(column); err != nil {
		return nil, fmt.Errorf("%s: %w", udi.InputFile, err)
	}
	barcodes := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if code := row.Get(column); code != "" {
			barcodes = append(barcodes, code)
		}
	}
	return barcodes, nil
}

// segment 读取交易日志计算RFM分群并写出结果表
func (r *Runner) segment(ctx context.Context, runID string) (map[string]interface{}, error) {
	transactions, err := tabular.ReadTransactions(r.path(tabular.TransactionFile))
	if err != nil {
		return nil, err
	}

	engine := rfm.NewEngine(rfm.Options{Metrics: r.metrics})
	result, err := engine.Segment(transactions, r.cfg.ReferenceDate(r.now()))
	if err != nil {
		return nil, err
	}

	summary := map[string]interface{}{
		"transactions":   len(transactions),
		"entities":       len(result.Records),
		"reference_date": result.ReferenceDate.Format("2006-01-02"),
		"distribution":   result.Distribution,
		"warnings":       result.Warnings,
	}
	for _, label := range meta.SegmentLabels {
		slog.Info("客户分群分布", "segment", label, "entities", result.Distribution[label])
	}

	if err := tabular.WriteRFM(r.path(tabular.RFMFile), result.Records, r.cfg.SegmentDisplayNames); err != nil {
		return summary, err
	}
	if r.outputs != nil {
		if err := r.outputs.ReplaceRFM(ctx, runID, result.Records); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
