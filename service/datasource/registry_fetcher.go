package datasource

import (
	"context"
	"net/url"
	"strconv"

	"github.com/icedo724/medi/service/models"
)

// 医疗机构基本信息接口
const (
	DefaultRegistryURL    = "http://apis.data.go.kr/B551182/hospInfoServicev2/getHospBasisList"
	DefaultCategoryCode   = "01" // 상급종합병원
	RegistryDataSourceKey = "registry"
)

// RegistryFetcher 按页获取医疗机构登记信息
type RegistryFetcher struct {
	client       *Client
	endpoint     string
	categoryCode string
}

// NewRegistryFetcher 创建登记信息分页获取器，categoryCode 为空时不按种别过滤
func NewRegistryFetcher(client *Client, endpoint, categoryCode string) *RegistryFetcher {
	if endpoint == "" {
		endpoint = DefaultRegistryURL
	}
	return &RegistryFetcher{client: client, endpoint: endpoint, categoryCode: categoryCode}
}

// FetchPage 获取一页登记记录
func (f *RegistryFetcher) FetchPage(ctx context.Context, pageNo, pageSize int) ([]models.Record, error) {
	params := url.Values{}
	params.Set("pageNo", strconv.Itoa(pageNo))
	params.Set("numOfRows", strconv.Itoa(pageSize))
	if f.categoryCode != "" {
		params.Set("clCd", f.categoryCode)
	}

	resp, err := f.client.Get(ctx, f.endpoint, params)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}
