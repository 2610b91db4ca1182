/*
 * @module service/datasource/response_parser
 * @description 公共数据门户(data.go.kr) XML响应解析器：结果码判断、错误信封识别、<item>记录提取
 * @architecture 流式解析 - 基于token遍历，不依赖固定的明细字段结构
 * @stateFlow 响应体 -> 字符集转换 -> 错误信封判断 -> 头部结果码 -> item 子元素 -> Record 列表
 * @rules
 *   - <item> 的每个直接子元素都作为一个字段，字段集合随数据源变化
 *   - resultCode 存在且不是 00 视为失败
 *   - OpenAPI_ServiceResponse 根元素是门户网关的错误信封，视为失败
 *   - 声明为 EUC-KR 的响应体先转为 UTF-8
 * @dependencies encoding/xml, golang.org/x/text/encoding/korean
 * @refs client.go
 */

package datasource

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/encoding/korean"

	"github.com/icedo724/medi/service/models"
)

// 成功结果码
const ResultCodeOK = "00"

// 门户网关错误信封根元素
const errorEnvelopeRoot = "OpenAPI_ServiceResponse"

// ErrUpstream 上游接口返回失败
var ErrUpstream = errors.New("上游接口返回失败")

// APIError 上游接口错误详情
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("上游接口错误 [%s]: %s", e.Code, e.Message)
}

// Unwrap 使 errors.Is(err, ErrUpstream) 成立
func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// ParsedResponse 解析后的响应
type ParsedResponse struct {
	ResultCode string          `json:"result_code"`
	ResultMsg  string          `json:"result_msg"`
	TotalCount int             `json:"total_count"`
	PageNo     int             `json:"page_no"`
	NumOfRows  int             `json:"num_of_rows"`
	Items      []models.Record `json:"items"`
}

// ParseResponse 解析XML响应体
func ParseResponse(body []byte) (*ParsedResponse, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: 响应体为空", ErrUpstream)
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charsetReader

	result := &ParsedResponse{Items: []models.Record{}}
	envelope := map[string]string{}

	var (
		root      string
		stack     []string
		item      models.Record
		itemDepth int
		text      strings.Builder
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML解析失败: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if root == "" {
				root = name
			}
			stack = append(stack, name)
			text.Reset()
			if item == nil && name == "item" {
				item = models.Record{}
				itemDepth = len(stack)
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			depth := len(stack)
			value := strings.TrimSpace(text.String())
			text.Reset()

			switch {
			case item != nil && depth == itemDepth:
				result.Items = append(result.Items, item)
				item = nil
			case item != nil && depth == itemDepth+1:
				item[name] = value
			case item == nil:
				if root == errorEnvelopeRoot {
					envelope[name] = value
				} else {
					result.assignHeader(name, value)
				}
			}
			if depth > 0 {
				stack = stack[:depth-1]
			}
		}
	}

	if root == "" {
		return nil, fmt.Errorf("%w: 响应中没有XML元素", ErrUpstream)
	}
	if root == errorEnvelopeRoot {
		code := envelope["returnReasonCode"]
		msg := envelope["returnAuthMsg"]
		if msg == "" {
			msg = envelope["errMsg"]
		}
		return nil, &APIError{Code: code, Message: msg}
	}
	if result.ResultCode != "" && result.ResultCode != ResultCodeOK {
		return nil, &APIError{Code: result.ResultCode, Message: result.ResultMsg}
	}

	return result, nil
}

func (p *ParsedResponse) assignHeader(name, value string) {
	switch name {
	case "resultCode":
		p.ResultCode = value
	case "resultMsg":
		p.ResultMsg = value
	case "totalCount":
		p.TotalCount = cast.ToInt(value)
	case "pageNo":
		p.PageNo = cast.ToInt(value)
	case "numOfRows":
		p.NumOfRows = cast.ToInt(value)
	}
}

// charsetReader 处理XML声明中的非UTF-8编码
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "euc-kr", "euckr", "cp949", "ks_c_5601-1987", "x-windows-949":
		return korean.EUCKR.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "":
		return input, nil
	default:
		return nil, fmt.Errorf("不支持的字符集: %s", label)
	}
}
