package datasource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/icedo724/medi/service/models"
)

// 医疗器械UDI接口
const (
	DefaultUDIURL = "https://apis.data.go.kr/1471000/MdrUdiSvc/getUdiInfo"
	UDISourceName = "udi_info"
	UDIFieldCode  = "barcode"
)

// udiFieldMap 接口字段 -> 输出字段
var udiFieldMap = []struct{ from, to string }{
	{"mnfcoNm", "company_name"},
	{"prductNm", "product_name"},
	{"mdlNm", "model_name"},
	{"strgMthd", "storage_method"},
}

// UDIFetcher 按UDI-DI条码查询医疗器械信息
type UDIFetcher struct {
	client   *Client
	endpoint string
}

// NewUDIFetcher 创建UDI查询器，该接口使用小写的 serviceKey
func NewUDIFetcher(client *Client, endpoint string) *UDIFetcher {
	if endpoint == "" {
		endpoint = DefaultUDIURL
	}
	return &UDIFetcher{client: client.WithKeyParam(KeyParamLower), endpoint: endpoint}
}

// Name 数据源名称
func (f *UDIFetcher) Name() string {
	return UDISourceName
}

// FetchDetails 查询条码对应的器械信息，只保留约定字段
func (f *UDIFetcher) FetchDetails(ctx context.Context, barcode string) ([]models.Record, error) {
	params := url.Values{}
	params.Set("udi_di_code", barcode)
	params.Set("numOfRows", "1")
	params.Set("pageNo", "1")

	resp, err := f.client.Get(ctx, f.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", UDISourceName, err)
	}

	out := make([]models.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		r := models.Record{UDIFieldCode: barcode}
		for _, f := range udiFieldMap {
			r[f.to] = item[f.from]
		}
		out = append(out, r)
	}
	return out, nil
}
