package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/icedo724/medi/service/database"
	"github.com/icedo724/medi/service/models"
)

// RunStore 运行记录存储
type RunStore interface {
	CreateRun(ctx context.Context, run *models.PipelineRun) error
	SaveRun(ctx context.Context, run *models.PipelineRun) error
	GetRun(ctx context.Context, id string) (*models.PipelineRun, error)
	ListRuns(ctx context.Context, status string, limit, offset int) ([]models.PipelineRun, int64, error)
}

// OutputStore 阶段输出持久化
type OutputStore interface {
	ReplaceEntities(ctx context.Context, runID string, entities []models.EntityRecord) error
	ReplaceMatches(ctx context.Context, runID string, results []models.MatchResult) error
	ReplaceRFM(ctx context.Context, runID string, records []models.RFMRecord) error
	ReplaceDetails(ctx context.Context, runID, source string, details []models.DetailRecord) (string, error)
}

// 内存中最多保留的运行记录数
const memoryRunLimit = 200

// MemoryRunStore 未启用数据库时使用的内存运行记录
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]models.PipelineRun
	ids  []string
}

// NewMemoryRunStore 创建内存运行记录存储
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]models.PipelineRun)}
}

// CreateRun 保存新运行记录，超出上限时淘汰最早的记录
func (s *MemoryRunStore) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	if err := run.BeforeCreate(nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = cloneRun(run)
	s.ids = append(s.ids, run.ID)
	if len(s.ids) > memoryRunLimit {
		delete(s.runs, s.ids[0])
		s.ids = s.ids[1:]
	}
	return nil
}

// SaveRun 更新运行记录
func (s *MemoryRunStore) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.ids = append(s.ids, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun 查询运行记录
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, database.ErrRunNotFound
	}
	out := cloneRun(&run)
	return &out, nil
}

// ListRuns 按创建顺序倒序分页
func (s *MemoryRunStore) ListRuns(ctx context.Context, status string, limit, offset int) ([]models.PipelineRun, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.PipelineRun, 0, len(s.ids))
	for i := len(s.ids) - 1; i >= 0; i-- {
		run := s.runs[s.ids[i]]
		if status == "" || run.Status == status {
			matched = append(matched, cloneRun(&run))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.PipelineRun{}, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

// cloneRun 复制运行记录，摘要在运行过程中会被修改
func cloneRun(run *models.PipelineRun) models.PipelineRun {
	out := *run
	if run.Summary != nil {
		out.Summary = make(models.JSONB, len(run.Summary))
		for k, v := range run.Summary {
			out.Summary[k] = v
		}
	}
	return out
}
