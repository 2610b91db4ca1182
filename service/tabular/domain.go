package tabular

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/icedo724/medi/service/meta"
	"github.com/icedo724/medi/service/models"
)

// 规范列名
const (
	ColumnEntityID        = "entity_id"
	ColumnDisplayName     = "display_name"
	ColumnRegion          = "region"
	ColumnAddress         = "address"
	ColumnCategory        = "category"
	ColumnClientName      = "client_name"
	ColumnTransactionDate = "transaction_date"
	ColumnOrderID         = "order_id"
	ColumnAmount          = "amount"
)

// 输出文件名
const (
	RegistryFile     = "hospital_basic_info.csv"
	ClientFile       = "client_list.csv"
	TransactionFile  = "sales_data.csv"
	MatchFile        = "name_similarity_check.csv"
	RFMFile          = "client_rfm_result.csv"
	detailFilePrefix = "hospital_detail_"
)

// 输入列别名：登记接口字段名与旧脚本使用的列名
var columnAliases = map[string]string{
	models.RegistryFieldEntityID:    ColumnEntityID,
	models.RegistryFieldDisplayName: ColumnDisplayName,
	models.RegistryFieldRegion:      ColumnRegion,
	models.RegistryFieldAddress:     ColumnAddress,
	models.RegistryFieldCategory:    ColumnCategory,
	"sales_date":                    ColumnTransactionDate,
}

// 输出列顺序
var (
	RegistryColumns = []string{ColumnEntityID, ColumnDisplayName, ColumnRegion, ColumnAddress, ColumnCategory}
	MatchColumns    = []string{ColumnClientName, "matched_display_name", "matched_entity_id", "score"}
	RFMColumns      = []string{ColumnEntityID, "recency_days", "frequency", "monetary", "r_score", "f_score", "m_score", "total_score", "segment"}
)

// DetailFileName 明细数据源的输出文件名
func DetailFileName(source string) string {
	return detailFilePrefix + source + ".csv"
}

func readRequired(path string, columns ...string) (*Table, error) {
	table, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	table.RenameColumns(columnAliases)
	if err := table.Require(columns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadRegistry 读取登记实体表，缺少entity_id的行被跳过
func ReadRegistry(path string) ([]models.EntityRecord, error) {
	table, err := readRequired(path, ColumnEntityID, ColumnDisplayName)
	if err != nil {
		return nil, err
	}
	out := make([]models.EntityRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		id := row.Get(ColumnEntityID)
		if id == "" {
			continue
		}
		out = append(out, models.EntityRecord{
			EntityID:    id,
			DisplayName: row.Get(ColumnDisplayName),
			Region:      row.Get(ColumnRegion),
			Address:     row.Get(ColumnAddress),
			Category:    row.Optional(ColumnCategory),
		})
	}
	return out, nil
}

// ReadClients 读取客户台账
func ReadClients(path string) ([]models.ClientRecord, error) {
	table, err := readRequired(path, ColumnClientName)
	if err != nil {
		return nil, err
	}
	out := make([]models.ClientRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, models.ClientRecord{ClientName: row[ColumnClientName]})
	}
	return out, nil
}

// ReadTransactions 读取交易日志，日期或金额无法解析时返回错误并指出行号
func ReadTransactions(path string) ([]models.TransactionRecord, error) {
	table, err := readRequired(path, ColumnEntityID, ColumnTransactionDate, ColumnOrderID, ColumnAmount)
	if err != nil {
		return nil, err
	}
	out := make([]models.TransactionRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		tx, err := ParseTransaction(row)
		if err != nil {
			return nil, fmt.Errorf("%s 第%d行: %w", path, i+2, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// ParseTransaction 解析单条交易记录
func ParseTransaction(row models.Record) (models.TransactionRecord, error) {
	date, err := ParseDate(row.Get(ColumnTransactionDate))
	if err != nil {
		return models.TransactionRecord{}, err
	}
	amount, err := ParseAmount(row.Get(ColumnAmount))
	if err != nil {
		return models.TransactionRecord{}, err
	}
	return models.TransactionRecord{
		EntityID:        row.Get(ColumnEntityID),
		TransactionDate: date,
		OrderID:         row.Get(ColumnOrderID),
		Amount:          amount,
	}, nil
}

// ParseDate 解析日期，支持常见的日期与时间格式
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: 日期为空", meta.ErrInvalidOption)
	}
	if t, err := time.Parse("20060102", value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006.01.02", value); err == nil {
		return t, nil
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式无法识别 %q: %w", value, err)
	}
	return t, nil
}

// ParseAmount 解析金额，允许千分位逗号和负数
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("金额格式无法识别 %q: %w", value, err)
	}
	return d, nil
}

// WriteRegistry 写出登记实体表
func WriteRegistry(path string, entities []models.EntityRecord, labels map[string]string) error {
	rows := make([][]string, len(entities))
	for i, e := range entities {
		rows[i] = []string{e.EntityID, e.DisplayName, e.Region, e.Address, deref(e.Category)}
	}
	return WriteCSV(path, RegistryColumns, rows, labels)
}

// WriteMatches 写出匹配结果表，无匹配时对应列为空
func WriteMatches(path string, results []models.MatchResult) error {
	rows := make([][]string, len(results))
	for i, r := range results {
		score := ""
		if r.Score != nil {
			score = decimal.NewFromFloat(*r.Score).Round(2).String()
		}
		rows[i] = []string{r.ClientName, deref(r.MatchedDisplayName), deref(r.MatchedEntityID), score}
	}
	return WriteCSV(path, MatchColumns, rows, nil)
}

// WriteRFM 写出RFM结果表，displayNames 为真时分群使用韩文标签
func WriteRFM(path string, records []models.RFMRecord, displayNames bool) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		segment := r.Segment
		if displayNames {
			if name, ok := meta.SegmentDisplayNames[segment]; ok {
				segment = name
			}
		}
		rows[i] = []string{
			r.EntityID,
			cast.ToString(r.RecencyDays),
			cast.ToString(r.Frequency),
			r.Monetary.String(),
			cast.ToString(r.RScore),
			cast.ToString(r.FScore),
			cast.ToString(r.MScore),
			cast.ToString(r.TotalScore),
			segment,
		}
	}
	return WriteCSV(path, RFMColumns, rows, nil)
}

// DetailColumns 明细表列顺序：entity_id 在前，其余属性按名称排序
func DetailColumns(details []models.DetailRecord) []string {
	seen := map[string]struct{}{}
	for _, d := range details {
		for k := range d.Attributes {
			if k == models.RegistryFieldEntityID || k == ColumnEntityID {
				continue
			}
			seen[k] = struct{}{}
		}
	}
	attrs := make([]string, 0, len(seen))
	for k := range seen {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	return append([]string{ColumnEntityID}, attrs...)
}

// WriteDetails 写出单个数据源的明细表，返回文件路径
func WriteDetails(dir, source string, details []models.DetailRecord, labels map[string]string) (string, error) {
	columns := DetailColumns(details)
	rows := make([][]string, len(details))
	for i, d := range details {
		row := make([]string, len(columns))
		row[0] = d.EntityID
		for j, c := range columns[1:] {
			row[j+1] = d.Attributes[c]
		}
		rows[i] = row
	}
	path := filepath.Join(dir, DetailFileName(source))
	return path, WriteCSV(path, columns, rows, labels)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
