/*
 * @module service/datasource/openapi_test
 * @description 公共数据门户客户端与获取器单元测试
 * @architecture 单元测试 - httptest 模拟上游接口
 * @documentReference client.go, response_parser.go
 * @stateFlow 启动模拟服务 -> 调用获取器 -> 校验参数与解析结果
 * @rules 覆盖成功、空结果、错误信封、结果码失败、HTTP失败、EUC-KR编码
 * @dependencies net/http/httptest, github.com/stretchr/testify
 */

package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

const hospitalPage = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<response>
  <header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header>
  <body>
    <items>
      <item><addr>서울특별시 종로구 대학로 101</addr><clCdNm>상급종합</clCdNm><sgguCdNm>종로구</sgguCdNm><yadmNm>서울대학교병원</yadmNm><ykiho>JDQ4MTYyMiM1MSMk</ykiho></item>
      <item><addr>서울특별시 서대문구 연세로 50-1</addr><clCdNm>상급종합</clCdNm><sgguCdNm>서대문구</sgguCdNm><yadmNm>세브란스병원</yadmNm><ykiho>JDQ4MTAxMiM1MSMk</ykiho></item>
    </items>
    <numOfRows>2</numOfRows><pageNo>1</pageNo><totalCount>45</totalCount>
  </body>
</response>`

const emptyPage = `<response><header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header><body><items/><numOfRows>10</numOfRows><pageNo>9</pageNo><totalCount>45</totalCount></body></response>`

const errorEnvelope = `<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg><returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg><returnReasonCode>30</returnReasonCode></cmmMsgHeader></OpenAPI_ServiceResponse>`

func newTestClient(t *testing.T, key string) *Client {
	client, err := NewClient(ClientConfig{APIKey: key})
	require.NoError(t, err)
	return client
}

// TestParseResponse 测试XML响应解析
func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte(hospitalPage))
	require.NoError(t, err)

	assert.Equal(t, ResultCodeOK, resp.ResultCode)
	assert.Equal(t, 45, resp.TotalCount)
	assert.Equal(t, 1, resp.PageNo)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "서울대학교병원", resp.Items[0]["yadmNm"])
	assert.Equal(t, "JDQ4MTAxMiM1MSMk", resp.Items[1]["ykiho"])
	assert.Len(t, resp.Items[0], 5)
}

// TestParseResponse_Failures 测试各类失败响应
func TestParseResponse_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"错误信封", errorEnvelope, "30"},
		{"结果码非00", `<response><header><resultCode>22</resultCode><resultMsg>LIMITED NUMBER OF SERVICE REQUESTS EXCEEDS ERROR.</resultMsg></header></response>`, "22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpstream)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}

	_, err := ParseResponse([]byte("<response><header>"))
	assert.Error(t, err, "截断的XML")

	_, err = ParseResponse([]byte("   "))
	assert.ErrorIs(t, err, ErrUpstream)
}

// TestParseResponse_EUCKR 测试EUC-KR编码响应
func TestParseResponse_EUCKR(t *testing.T) {
	utf8Body := `<?xml version="1.0" encoding="EUC-KR"?><response><header><resultCode>00</resultCode></header><body><items><item><yadmNm>부산대학교병원</yadmNm></item></items></body></response>`
	encoded, err := korean.EUCKR.NewEncoder().String(utf8Body)
	require.NoError(t, err)

	resp, err := ParseResponse([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "부산대학교병원", resp.Items[0]["yadmNm"])
}

// TestNewClient_DecodesKey 测试已编码密钥被解码
func TestNewClient_DecodesKey(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Query()
		w.Write([]byte(emptyPage))
	}))
	defer server.Close()

	client := newTestClient(t, "abc%2Bdef%3D%3D")
	_, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc+def==", received.Get(KeyParamUpper))

	_, err = NewClient(ClientConfig{APIKey: " "})
	assert.Error(t, err)
}

// TestRegistryFetcher_FetchPage 测试登记信息分页参数与结果
func TestRegistryFetcher_FetchPage(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Query()
		w.Header().Set("Content-Type", "application/xml;charset=UTF-8")
		if received.Get("pageNo") == "1" {
			w.Write([]byte(hospitalPage))
			return
		}
		w.Write([]byte(emptyPage))
	}))
	defer server.Close()

	fetcher := NewRegistryFetcher(newTestClient(t, "test-key"), server.URL, DefaultCategoryCode)

	items, err := fetcher.FetchPage(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "test-key", received.Get("ServiceKey"))
	assert.Equal(t, "1000", received.Get("numOfRows"))
	assert.Equal(t, "01", received.Get("clCd"))

	items, err = fetcher.FetchPage(context.Background(), 2, 1000)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// TestRegistryFetcher_HTTPError 测试非2xx状态码
func TestRegistryFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewRegistryFetcher(newTestClient(t, "k"), server.URL, "")
	_, err := fetcher.FetchPage(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrUpstream)
}

// TestDetailFetcher 测试明细接口调用与ykiho回填
func TestDetailFetcher(t *testing.T) {
	var path string
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		received = r.URL.Query()
		w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items>
			<item><dgsbjtCd>01</dgsbjtCd><dgsbjtCdNm>내과</dgsbjtCdNm><cdiagDrCnt>12</cdiagDrCnt></item>
			<item><dgsbjtCd>23</dgsbjtCd><dgsbjtCdNm>가정의학과</dgsbjtCdNm></item>
		</items></body></response>`))
	}))
	defer server.Close()

	fetcher, err := NewDetailFetcher(newTestClient(t, "k"), server.URL, DefaultDetailOperations[0])
	require.NoError(t, err)
	assert.Equal(t, "dgsbjt_info", fetcher.Name())

	records, err := fetcher.FetchDetails(context.Background(), "YK1")
	require.NoError(t, err)

	assert.Equal(t, "/getMdlrtSbjectInfoList", path)
	assert.Equal(t, "YK1", received.Get("ykiho"))
	assert.Equal(t, "100", received.Get("numOfRows"))
	require.Len(t, records, 2)
	assert.Equal(t, "YK1", records[0]["ykiho"])
	assert.Equal(t, "12", records[0]["cdiagDrCnt"])
	assert.NotContains(t, records[1], "cdiagDrCnt")

	_, err = NewDetailFetcher(newTestClient(t, "k"), server.URL, DetailOperation{Name: "x"})
	assert.Error(t, err)
}

// TestUDIFetcher 测试UDI查询字段映射
func TestUDIFetcher(t *testing.T) {
	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Query()
		if received.Get("udi_di_code") == "00000000000000" {
			w.Write([]byte(emptyPage))
			return
		}
		w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items><item>
			<mnfcoNm>(주)메디칼</mnfcoNm><prductNm>수액세트</prductNm><mdlNm>IV-100</mdlNm><strgMthd>실온보관</strgMthd><udiDiCd>08800026300229</udiDiCd>
		</item></items></body></response>`))
	}))
	defer server.Close()

	fetcher := NewUDIFetcher(newTestClient(t, "k"), server.URL)
	records, err := fetcher.FetchDetails(context.Background(), "08800026300229")
	require.NoError(t, err)

	assert.Equal(t, "k", received.Get(KeyParamLower))
	assert.Empty(t, received.Get(KeyParamUpper))
	assert.Equal(t, "1", received.Get("numOfRows"))
	require.Len(t, records, 1)
	assert.Equal(t, "08800026300229", records[0]["barcode"])
	assert.Equal(t, "(주)메디칼", records[0]["company_name"])
	assert.Equal(t, "IV-100", records[0]["model_name"])
	assert.Len(t, records[0], 5)

	records, err = fetcher.FetchDetails(context.Background(), "00000000000000")
	require.NoError(t, err)
	assert.Empty(t, records)
}
