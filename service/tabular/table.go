/*
 * @module service/tabular/table
 * @description 扁平表读写：CSV输入表校验、列别名归一、稳定列顺序输出与列名本地化
 * @architecture 适配层 - 文件格式与领域记录之间的转换
 * @stateFlow CSV -> Table(列+记录) -> 必需列校验 -> 领域记录；领域记录 -> 列顺序 -> CSV
 * @rules
 *   - 输入文件不存在或缺少必需列时返回前置条件错误，不做任何处理
 *   - 输出带UTF-8 BOM，便于表格软件直接打开韩文内容
 *   - 列顺序固定，不依赖map遍历顺序
 * @dependencies encoding/csv, github.com/spf13/cast
 * @refs service/pipeline
 */

package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table 内存中的扁平表
type Table struct {
	Columns []string
	Rows    []models.Record
}

// HasColumn 是否包含列
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require 校验必需列
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", meta.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// RenameColumns 按别名表把列改为规范名称，规范列已存在时不覆盖
func (t *Table) RenameColumns(aliases map[string]string) {
	for i, c := range t.Columns {
		canonical, ok := aliases[c]
		if !ok || t.HasColumn(canonical) {
			continue
		}
		t.Columns[i] = canonical
		for _, row := range t.Rows {
			row[canonical] = row[c]
			delete(row, c)
		}
	}
}

// ReadCSV 读取带表头的CSV文件
func ReadCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", meta.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return parseCSV(bytes.TrimPrefix(data, utf8BOM))
}

func parseCSV(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: 表头为空", meta.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("CSV表头解析失败: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &Table{Columns: header}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV第%d行解析失败: %w", line, err)
		}
		record := make(models.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			} else {
				record[col] = ""
			}
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// WriteCSV 按给定列顺序写出，labels 非空时替换表头显示名称
func WriteCSV(path string, columns []string, rows [][]string, labels map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Localize(columns, labels)); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("写入数据失败: %w", err)
	}
	return f.Close()
}

// Localize 返回本地化后的表头
func Localize(columns []string, labels map[string]string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if label, ok := labels[c]; ok && label != "" {
			out[i] = label
		} else {
			out[i] = c
		}
	}
	return out
}
