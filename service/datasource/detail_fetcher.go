/*
 * @module service/datasource/detail_fetcher
 * @description 医疗机构明细接口：按加密疗养机构代码获取诊疗科目、设备、护理等级、设施等明细
 * @architecture 每个接口操作对应一个独立数据源，字段结构互不相关
 * @stateFlow ykiho -> GET BASE_URL+operation -> item列表 -> 附加ykiho
 * @rules 每条明细都带回 ykiho，便于按实体关联
 * @dependencies net/url
 * @refs service/aggregator
 */

package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/icedo724/medi/service/models"
)

// DefaultDetailBaseURL 明细接口基础地址
const DefaultDetailBaseURL = "http://apis.data.go.kr/B551182/hospInfoServicev2/"

// DefaultDetailRows 每个实体单次请求的最大行数
const DefaultDetailRows = 100

// DetailOperation 数据源名称与接口操作
type DetailOperation struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	Operation string `yaml:"operation" json:"operation" validate:"required"`
}

// DefaultDetailOperations 默认明细数据源，按输出顺序排列
var DefaultDetailOperations = []DetailOperation{
	{Name: "dgsbjt_info", Operation: "getMdlrtSbjectInfoList"},
	{Name: "equip_info", Operation: "getHospEquipInfoList"},
	{Name: "nursing_info", Operation: "getNursigGradeInfoList"},
	{Name: "facility_info", Operation: "getFcltyInfoList"},
}

// DetailFetcher 单个明细接口
type DetailFetcher struct {
	name     string
	endpoint string
	rows     int
	client   *Client
}

// NewDetailFetcher 创建明细获取器
func NewDetailFetcher(client *Client, baseURL string, op DetailOperation) (*DetailFetcher, error) {
	if op.Name == "" || op.Operation == "" {
		return nil, fmt.Errorf("明细数据源名称和接口操作不能为空")
	}
	if baseURL == "" {
		baseURL = DefaultDetailBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &DetailFetcher{
		name:     op.Name,
		endpoint: baseURL + op.Operation,
		rows:     DefaultDetailRows,
		client:   client,
	}, nil
}

// Name 数据源名称
func (f *DetailFetcher) Name() string {
	return f.name
}

// FetchDetails 获取某实体的全部明细
func (f *DetailFetcher) FetchDetails(ctx context.Context, entityID string) ([]models.Record, error) {
	params := url.Values{}
	params.Set(models.RegistryFieldEntityID, entityID)
	params.Set("numOfRows", strconv.Itoa(f.rows))

	resp, err := f.client.Get(ctx, f.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	for _, item := range resp.Items {
		item[models.RegistryFieldEntityID] = entityID
	}
	return resp.Items, nil
}
