/*
 * @module service/resolver/resolver
 * @description 身份解析器：将内部台账中的自由文本客户名称关联到规范登记实体
 * @architecture 全量扫描匹配 - 每个查询与候选池逐一比较，O(Q×C)
 * @stateFlow 候选池预处理 -> 逐个查询打分 -> 取最高分 -> 置信下限过滤 -> MatchResult
 * @rules
 *   - 最高分胜出，同分取候选池中最靠前的一个
 *   - 候选池为空时不匹配、无分数
 *   - 低于置信下限时保留分数，但不给出匹配实体
 *   - 登记规模在数千量级，不做近似索引；更大规模需要分块策略
 * @dependencies service/models, service/monitoring
 * @refs service/pipeline
 */

package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/monitoring"
)

// DefaultProgressEvery 每解析多少个查询输出一次进度
const DefaultProgressEvery = 500

// Options 解析参数
type Options struct {
	MinScore      float64   // 置信下限，0表示不过滤
	Processor     Processor // 名称预处理，默认NFC
	ProgressEvery int
	Metrics       *monitoring.MetricsCollector
}

// Match 单次匹配结果
type Match struct {
	Index     int     // 候选池下标，无候选时为-1
	Candidate string  // 最佳候选原文
	Score     float64 // 最佳分数
}

// BestMatch 在候选名称中查找最相似的一项；候选为空时返回false
func BestMatch(query string, candidates []string) (Match, bool) {
	prepared := make([]string, len(candidates))
	for i, c := range candidates {
		prepared[i] = SortTokens(NFC(c))
	}
	return bestMatch(SortTokens(NFC(query)), prepared, candidates)
}

func bestMatch(query string, prepared, original []string) (Match, bool) {
	best := Match{Index: -1}
	for i, candidate := range prepared {
		score := ratio(query, candidate)
		// 严格大于保证同分时保留靠前的候选
		if best.Index < 0 || score > best.Score {
			best = Match{Index: i, Candidate: original[i], Score: score}
		}
	}
	return best, best.Index >= 0
}

// Summary 批量解析统计
type Summary struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// Resolver 以登记实体为候选池的解析器，候选池只预处理一次
type Resolver struct {
	opts     Options
	entities []models.EntityRecord
	names    []string
	prepared []string
}

// NewResolver 创建解析器
func NewResolver(entities []models.EntityRecord, opts Options) (*Resolver, error) {
	if opts.MinScore < 0 || opts.MinScore > 100 {
		return nil, fmt.Errorf("%w: 置信下限必须在0-100之间，当前为%v", meta.ErrInvalidOption, opts.MinScore)
	}
	if opts.Processor == nil {
		opts.Processor = NFC
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	r := &Resolver{
		opts:     opts,
		entities: entities,
		names:    make([]string, len(entities)),
		prepared: make([]string, len(entities)),
	}
	for i, e := range entities {
		r.names[i] = e.DisplayName
		r.prepared[i] = r.prepare(e.DisplayName)
	}
	return r, nil
}

func (r *Resolver) prepare(s string) string {
	return SortTokens(NFC(r.opts.Processor(s)))
}

// Resolve 解析单个客户名称，总是返回恰好一个结果
func (r *Resolver) Resolve(clientName string) models.MatchResult {
	result := models.MatchResult{ClientName: clientName, CandidateIndex: -1}

	best, ok := bestMatch(r.prepare(clientName), r.prepared, r.names)
	if !ok {
		return result
	}

	score := best.Score
	result.Score = &score
	result.CandidateIndex = best.Index
	if score < r.opts.MinScore {
		return result
	}

	entity := r.entities[best.Index]
	name := entity.DisplayName
	id := entity.EntityID
	result.MatchedDisplayName = &name
	result.MatchedEntityID = &id
	return result
}

// ResolveAll 按输入顺序解析全部客户记录，可在查询之间取消
func (r *Resolver) ResolveAll(ctx context.Context, clients []models.ClientRecord) ([]models.MatchResult, *Summary, error) {
	if len(r.entities) == 0 {
		slog.Warn("候选池为空，所有客户记录都将无匹配", "clients", len(clients))
	}

	results := make([]models.MatchResult, 0, len(clients))
	summary := &Summary{}

	for i, client := range clients {
		if err := ctx.Err(); err != nil {
			return results, summary, fmt.Errorf("名称解析被取消: %w", err)
		}

		result := r.Resolve(client.ClientName)
		results = append(results, result)

		summary.Total++
		if result.Matched() {
			summary.Matched++
		} else {
			summary.Unmatched++
		}

		if (i+1)%r.opts.ProgressEvery == 0 {
			slog.Info("名称解析进度", "processed", i+1, "total", len(clients))
		}
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveMatches(summary.Matched, summary.Unmatched)
	}
	slog.Info("名称解析完成",
		"total", summary.Total,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"min_score", r.opts.MinScore)

	return results, summary, nil
}
