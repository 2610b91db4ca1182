/*
 * @module service/datasource/client
 * @description 公共数据门户 OpenAPI 客户端：附加服务密钥，发起GET请求并解析XML响应
 * @architecture 简单HTTP客户端模式 - 无会话、无认证头，密钥作为查询参数
 * @stateFlow 组装查询参数 -> GET -> 状态码检查 -> ParseResponse
 * @rules 非2xx、XML格式错误、结果码非00都返回错误，由调用方决定是否容忍
 * @dependencies net/http
 * @refs registry_fetcher.go, detail_fetcher.go, udi_fetcher.go
 */

package datasource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// 服务密钥参数名。医疗机构接口使用 ServiceKey，医疗器械接口使用 serviceKey
const (
	KeyParamUpper = "ServiceKey"
	KeyParamLower = "serviceKey"
)

// 响应体大小上限
const maxResponseBytes = 32 << 20

// ClientConfig 客户端配置
type ClientConfig struct {
	APIKey     string
	KeyParam   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client 公共数据门户客户端
type Client struct {
	httpClient *http.Client
	apiKey     string
	keyParam   string
}

// NewClient 创建客户端；已做URL编码的密钥会先解码，避免发送时二次编码
func NewClient(config ClientConfig) (*Client, error) {
	key := strings.TrimSpace(config.APIKey)
	if key == "" {
		return nil, fmt.Errorf("服务密钥不能为空")
	}
	if strings.Contains(key, "%") {
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("服务密钥解码失败: %w", err)
		}
		key = decoded
	}

	keyParam := config.KeyParam
	if keyParam == "" {
		keyParam = KeyParamUpper
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{httpClient: httpClient, apiKey: key, keyParam: keyParam}, nil
}

// WithKeyParam 返回使用另一个密钥参数名的客户端副本
func (c *Client) WithKeyParam(keyParam string) *Client {
	clone := *c
	clone.keyParam = keyParam
	return &clone
}

// Get 调用指定接口
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*ParsedResponse, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("接口地址无效: %w", err)
	}

	query := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set(c.keyParam, c.apiKey)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	slog.Debug("OpenAPI请求完成",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"size", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP状态码 %d", ErrUpstream, resp.StatusCode)
	}

	return ParseResponse(body)
}
