/*
 * @module service/data_quality/cleanser
 * @description 数据清洗器：把库存台账中的属性JSON列展开为独立列，并规范化表头
 * @architecture 分层架构 - 数据清洗层
 * @stateFlow 读取表 -> 表头去除*与空白 -> 解析 attributes 列 -> 按首次出现顺序追加属性列 -> 删除原列
 * @rules
 *   - 属性列格式为 [{"name":..,"value":..}]，缺少name或value的元素忽略
 *   - 空值或无法解析的JSON视为没有属性，不报错
 *   - 表头先去除*与空白再合并属性列，属性名与已有列同名时两列都保留，属性列追加 .1 后缀
 * @dependencies encoding/json, github.com/spf13/cast
 * @refs service/tabular
 */

package data_quality

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"github.com/icedo724/medi/service/models"
	"github.com/icedo724/medi/service/tabular"
)

// DefaultAttributeColumn 属性JSON所在列
const DefaultAttributeColumn = "attributes"

// CleanseStats 清洗统计
type CleanseStats struct {
	Rows           int `json:"rows"`
	ExpandedRows   int `json:"expanded_rows"`
	MalformedRows  int `json:"malformed_rows"`
	AddedColumns   int `json:"added_columns"`
	RenamedHeaders int `json:"renamed_headers"`
}

// Cleanser 数据清洗器
type Cleanser struct {
	attributeColumn string
}

// NewCleanser 创建数据清洗器实例
func NewCleanser(attributeColumn string) *Cleanser {
	if attributeColumn == "" {
		attributeColumn = DefaultAttributeColumn
	}
	return &Cleanser{attributeColumn: attributeColumn}
}

// ExpandAttributes 解析单个属性JSON，返回名称顺序与名称到值的映射
func ExpandAttributes(raw string) ([]string, map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, map[string]string{}, nil
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, map[string]string{}, fmt.Errorf("属性JSON解析失败: %w", err)
	}

	order := make([]string, 0, len(items))
	values := make(map[string]string, len(items))
	for _, item := range items {
		name, hasName := item["name"]
		value, hasValue := item["value"]
		if !hasName || !hasValue {
			continue
		}
		key := cast.ToString(name)
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = cast.ToString(value)
	}
	return order, values, nil
}

// CleanHeader 去除表头中的 * 与首尾空白
func CleanHeader(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "*", ""))
}

// Cleanse 对表执行属性展开与表头规范化，返回新表
func (c *Cleanser) Cleanse(table *tabular.Table) (*tabular.Table, *CleanseStats) {
	stats := &CleanseStats{Rows: len(table.Rows)}
	hasAttributes := table.HasColumn(c.attributeColumn)

	// 先规范原有表头，属性列按规范后的名称去重
	used := make(map[string]struct{}, len(table.Columns))
	columns := make([]string, 0, len(table.Columns))
	rename := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		if hasAttributes && col == c.attributeColumn {
			continue
		}
		name := uniqueName(CleanHeader(col), used)
		if name != col {
			stats.RenamedHeaders++
		}
		rename[col] = name
		columns = append(columns, name)
	}

	attrColumns := make(map[string]string)
	rows := make([]models.Record, len(table.Rows))
	for i, row := range table.Rows {
		out := make(models.Record, len(rename))
		for raw, name := range rename {
			if v, ok := row[raw]; ok {
				out[name] = v
			}
		}

		if hasAttributes {
			order, values, err := ExpandAttributes(row[c.attributeColumn])
			if err != nil {
				stats.MalformedRows++
				slog.Debug("属性列无法解析，按无属性处理", "row", i+2, "error", err)
			}
			if len(values) > 0 {
				stats.ExpandedRows++
			}
			for _, attr := range order {
				key := CleanHeader(attr)
				name, ok := attrColumns[key]
				if !ok {
					name = uniqueName(key, used)
					attrColumns[key] = name
					columns = append(columns, name)
					stats.AddedColumns++
				}
				out[name] = values[attr]
			}
		}
		rows[i] = out
	}

	slog.Info("库存数据清洗完成",
		"rows", stats.Rows,
		"expanded_rows", stats.ExpandedRows,
		"malformed_rows", stats.MalformedRows,
		"added_columns", stats.AddedColumns)

	return &tabular.Table{Columns: columns, Rows: rows}, stats
}

// uniqueName 同名列依次追加 .1、.2 后缀
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 1; ; n++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", name, n)
	}
}

// CleanseFile 读取CSV、清洗并写出
func (c *Cleanser) CleanseFile(inPath, outPath string) (*CleanseStats, error) {
	table, err := tabular.ReadCSV(inPath)
	if err != nil {
		return nil, err
	}
	cleaned, stats := c.Cleanse(table)

	rows := make([][]string, len(cleaned.Rows))
	for i, r := range cleaned.Rows {
		row := make([]string, len(cleaned.Columns))
		for j, col := range cleaned.Columns {
			row[j] = r[col]
		}
		rows[i] = row
	}
	if err := tabular.WriteCSV(outPath, cleaned.Columns, rows, nil); err != nil {
		return nil, err
	}
	return stats, nil
}
