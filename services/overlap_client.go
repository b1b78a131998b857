package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/config"
)

var ErrInvalidApiBase = errors.New("接口基地址必须为相对路径或HTTPS地址")

// ApiClient 压盖与周边查询的HTTP客户端
// 采集引擎只通过它访问服务端，内置引擎也走同一条HTTP链路
type ApiClient struct {
	base   string
	client *http.Client
}

// NewApiClient 校验并规整基地址
// 相对路径解析到本机监听地址，HTTPS地址原样使用，其余一律拒绝
func NewApiClient(base string) (*ApiClient, error) {
	normalized, err := normalizeApiBase(base)
	if err != nil {
		return nil, err
	}
	return &ApiClient{
		base:   normalized,
		client: &http.Client{Timeout: 35 * time.Second},
	}, nil
}

func normalizeApiBase(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasPrefix(base, "https://") {
		return base, nil
	}
	if strings.HasPrefix(base, "/") {
		host := config.MainRouter
		// 监听在通配地址时回环访问自身
		if strings.HasPrefix(host, "0.0.0.0") {
			host = "127.0.0.1" + strings.TrimPrefix(host, "0.0.0.0")
		}
		return "http://" + host + base, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidApiBase, base)
}

// CheckOverlap 调用压盖检查接口
func (c *ApiClient) CheckOverlap(ctx context.Context, req capture.OverlapRequest) (*capture.OverlapResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/overlap/check", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("压盖服务返回状态 %d", resp.StatusCode)
	}

	var result capture.OverlapResult
	if err := json.Unmarshal(UnwrapEnvelope(body), &result); err != nil {
		return nil, fmt.Errorf("压盖结果解析失败: %w", err)
	}
	return &result, nil
}

// UnwrapEnvelope 剥掉历史接口的双重编码信封
// 兼容三种形态：裸结果、{"data":{...}}、{"data":"<JSON字符串>"}
func UnwrapEnvelope(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return body
	}
	inner := bytes.TrimSpace(env.Data)
	if len(inner) > 0 && inner[0] == '"' {
		var nested string
		if err := json.Unmarshal(inner, &nested); err == nil {
			return []byte(nested)
		}
	}
	return inner
}
