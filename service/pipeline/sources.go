package pipeline

import (
	"fmt"

	"github.com/icedo724/medi/service/aggregator"
	"github.com/icedo724/medi/service/collector"
	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/datasource"
	"github.com/icedo724/medi/service/meta"
)

// Sources 外部接口能力
type Sources struct {
	Registry collector.PageFetcher
	Details  []aggregator.Source
	UDI      aggregator.Source
}

// SourceFactory 按配置构造外部接口能力，只在需要调用外部接口的阶段执行
type SourceFactory func(cfg *config.Config) (*Sources, error)

// DefaultSources 基于公共数据门户的实际接口
func DefaultSources(cfg *config.Config) (*Sources, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: 未配置 DATA_GO_KR_API_KEY", meta.ErrInvalidOption)
	}

	client, err := datasource.NewClient(datasource.ClientConfig{
		APIKey:  cfg.APIKey,
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", meta.ErrInvalidOption, err)
	}

	sources := &Sources{
		Registry: datasource.NewRegistryFetcher(client, cfg.RegistryURL, cfg.RegistryCategoryCode),
	}
	for _, op := range cfg.Sources.Details {
		fetcher, err := datasource.NewDetailFetcher(client, cfg.DetailBaseURL, op)
		if err != nil {
			return nil, err
		}
		sources.Details = append(sources.Details, fetcher)
	}
	if cfg.Sources.UDI.Enabled {
		sources.UDI = datasource.NewUDIFetcher(client, cfg.UDIURL)
	}
	return sources, nil
}
