package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/GrainArc/LandCollect/capture"
)

// FetchNearby 调用周边地块查询接口，返回要素集原文
func (c *ApiClient) FetchNearby(ctx context.Context, req capture.NearbyRequest) ([]byte, error) {
	q := url.Values{}
	q.Set("formId", req.FormId)
	q.Set("geometryFieldId", req.GeometryFieldId)
	q.Set("bounds", req.Bounds)
	if req.FilterCondition != "" {
		q.Set("filterCondition", req.FilterCondition)
	}
	if req.ReturnFields != "" {
		q.Set("returnFields", req.ReturnFields)
	}
	if req.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(req.MaxResults))
	}
	if req.ExcludeRecordId != "" {
		q.Set("excludeRecordId", req.ExcludeRecordId)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/nearby/parcels?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
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
		return nil, fmt.Errorf("周边查询返回状态 %d", resp.StatusCode)
	}
	return UnwrapEnvelope(body), nil
}
