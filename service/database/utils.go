package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// 明细表名前缀
const detailTablePrefix = "detail_"

// ValidateTableName 验证表名：字母开头，只含字母、数字和下划线，不超过63个字符
func ValidateTableName(tableName string) error {
	if len(tableName) == 0 {
		return fmt.Errorf("表名不能为空")
	}
	if len(tableName) > 63 {
		return fmt.Errorf("表名长度不能超过63个字符")
	}
	if !((tableName[0] >= 'a' && tableName[0] <= 'z') || (tableName[0] >= 'A' && tableName[0] <= 'Z')) {
		return fmt.Errorf("表名必须以字母开头")
	}
	for i := 1; i < len(tableName); i++ {
		c := tableName[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return fmt.Errorf("表名只能包含字母、数字和下划线")
		}
	}
	return nil
}

// DetailTableName 数据源对应的明细表名
func DetailTableName(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("数据源名称不能为空")
	}
	name := detailTablePrefix + strings.ToLower(source)
	if err := ValidateTableName(name); err != nil {
		return "", fmt.Errorf("数据源名称 %q 无法作为表名: %w", source, err)
	}
	return name, nil
}

// CheckSchemaExists 检查 schema 是否存在（仅PostgreSQL）
func CheckSchemaExists(db *gorm.DB, schemaName string) bool {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", schemaName).Scan(&count)
	return count > 0
}

// CreateSchema 创建 schema（仅PostgreSQL）
func CreateSchema(db *gorm.DB, schemaName string) error {
	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schemaName)).Error; err != nil {
		return fmt.Errorf("创建 schema %s 失败: %w", schemaName, err)
	}
	return nil
}

// truncate 清空表内容，保留表结构
func truncate(tx *gorm.DB, table string) error {
	return tx.Exec("DELETE FROM " + pq.QuoteIdentifier(table)).Error
}
