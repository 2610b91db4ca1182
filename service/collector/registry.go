package collector

import (
	"log/slog"

	"github.com/icedo724/medi/service/models"
)

// RegistryResult 登记实体转换结果
type RegistryResult struct {
	Entities   []models.EntityRecord
	Duplicates int
	MissingID  int
}

// ToEntities 将采集到的登记记录转换为规范实体。
// entity_id 重复时保留首次出现的记录，缺少 entity_id 的记录被丢弃
func ToEntities(records []models.Record) *RegistryResult {
	result := &RegistryResult{Entities: make([]models.EntityRecord, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		entity, ok := models.EntityFromRecord(r)
		if !ok {
			result.MissingID++
			continue
		}
		if _, dup := seen[entity.EntityID]; dup {
			result.Duplicates++
			continue
		}
		seen[entity.EntityID] = struct{}{}
		result.Entities = append(result.Entities, entity)
	}

	if result.Duplicates > 0 || result.MissingID > 0 {
		slog.Warn("登记记录存在重复或缺失标识",
			"duplicates", result.Duplicates,
			"missing_id", result.MissingID,
			"entities", len(result.Entities))
	}
	return result
}
