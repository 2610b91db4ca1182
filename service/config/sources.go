package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/icedo724/medi/service/datasource"
	"github.com/icedo724/medi/service/tabular"
)

// UDIConfig 医疗器械条码查询配置
type UDIConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	InputFile string `yaml:"input_file" json:"input_file"`
	Column    string `yaml:"column" json:"column"`
}

// SourceCatalog 明细数据源目录
type SourceCatalog struct {
	Details []datasource.DetailOperation `yaml:"details" json:"details" validate:"min=1,dive"`
	UDI     UDIConfig                    `yaml:"udi" json:"udi"`
	Labels  map[string]string            `yaml:"labels" json:"labels"`
}

// DefaultSourceCatalog 默认目录：四个医疗机构明细接口，条码查询关闭
func DefaultSourceCatalog() *SourceCatalog {
	details := make([]datasource.DetailOperation, len(datasource.DefaultDetailOperations))
	copy(details, datasource.DefaultDetailOperations)

	labels := make(map[string]string, len(tabular.DefaultColumnLabels))
	for k, v := range tabular.DefaultColumnLabels {
		labels[k] = v
	}

	return &SourceCatalog{
		Details: details,
		UDI: UDIConfig{
			InputFile: "target_barcodes.csv",
			Column:    "barcode",
		},
		Labels: labels,
	}
}

// LoadSources 加载数据源目录YAML，path 为空时返回默认目录。
// YAML 中未出现的部分沿用默认值
func LoadSources(path string) (*SourceCatalog, error) {
	catalog := DefaultSourceCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取数据源目录失败: %w", err)
	}

	var fileCatalog SourceCatalog
	if err := yaml.Unmarshal(data, &fileCatalog); err != nil {
		return nil, fmt.Errorf("解析数据源目录失败: %w", err)
	}

	if len(fileCatalog.Details) > 0 {
		catalog.Details = fileCatalog.Details
	}
	if fileCatalog.UDI.Enabled {
		catalog.UDI.Enabled = true
	}
	if fileCatalog.UDI.InputFile != "" {
		catalog.UDI.InputFile = fileCatalog.UDI.InputFile
	}
	if fileCatalog.UDI.Column != "" {
		catalog.UDI.Column = fileCatalog.UDI.Column
	}
	for k, v := range fileCatalog.Labels {
		catalog.Labels[k] = v
	}

	if err := validate.Struct(catalog); err != nil {
		return nil, fmt.Errorf("数据源目录校验失败: %w", err)
	}
	return catalog, nil
}
