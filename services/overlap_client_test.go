package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapEnvelopeBareBody(t *testing.T) {
	body := []byte(`{"hasOverlaps":false,"overlaps":[]}`)
	assert.Equal(t, body, UnwrapEnvelope(body))
}

func TestUnwrapEnvelopeObjectData(t *testing.T) {
	body := []byte(`{"data":{"hasOverlaps":true,"overlaps":[]}}`)
	assert.JSONEq(t, `{"hasOverlaps":true,"overlaps":[]}`, string(UnwrapEnvelope(body)))
}

func TestUnwrapEnvelopeDoubleEncoded(t *testing.T) {
	inner := `{"hasOverlaps":true,"overlaps":[{"recordId":"b-1"}]}`
	body, err := json.Marshal(map[string]string{"data": inner})
	require.NoError(t, err)
	assert.JSONEq(t, inner, string(UnwrapEnvelope(body)))
}

func TestUnwrapEnvelopeNonJson(t *testing.T) {
	body := []byte("not-json")
	assert.Equal(t, body, UnwrapEnvelope(body))
}

func TestNormalizeApiBase(t *testing.T) {
	oldRouter := config.MainRouter
	config.MainRouter = "0.0.0.0:8426"
	defer func() { config.MainRouter = oldRouter }()

	got, err := normalizeApiBase("https://survey.example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://survey.example.com/api", got)

	got, err = normalizeApiBase("/api")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8426/api", got)

	_, err = normalizeApiBase("http://evil.example.com/api")
	assert.ErrorIs(t, err, ErrInvalidApiBase)

	_, err = normalizeApiBase("ftp://files.example.com")
	assert.ErrorIs(t, err, ErrInvalidApiBase)
}

func TestNormalizeApiBaseKeepsExplicitHost(t *testing.T) {
	oldRouter := config.MainRouter
	config.MainRouter = "192.168.1.20:9000"
	defer func() { config.MainRouter = oldRouter }()

	got, err := normalizeApiBase("/survey/api")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:9000/survey/api", got)
}

func TestCheckOverlapRoundTrip(t *testing.T) {
	var gotReq capture.OverlapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/overlap/check", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		result := `{"hasOverlaps":true,"overlaps":[{"recordId":"b-1","overlapAreaHectares":0.5,"overlapPercentOfInput":12.5}]}`
		resp, _ := json.Marshal(map[string]string{"data": result})
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}))
	defer srv.Close()

	c := &ApiClient{base: srv.URL, client: srv.Client()}
	result, err := c.CheckOverlap(context.Background(), capture.OverlapRequest{
		Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`),
		Target: capture.OverlapTarget{
			FormId:          "form-1",
			GeometryFieldId: "geom",
			ExcludeRecordId: "self-1",
		},
	})
	require.NoError(t, err)
	assert.True(t, result.HasOverlaps)
	require.Len(t, result.Overlaps, 1)
	assert.Equal(t, "b-1", result.Overlaps[0].RecordId)
	assert.InDelta(t, 0.5, result.Overlaps[0].OverlapAreaHectares, 1e-9)
	assert.InDelta(t, 12.5, result.Overlaps[0].OverlapPercentOfInput, 1e-9)

	assert.Equal(t, "form-1", gotReq.Target.FormId)
	assert.Equal(t, "self-1", gotReq.Target.ExcludeRecordId)
	assert.NotEmpty(t, gotReq.Geometry)
}

func TestCheckOverlapServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &ApiClient{base: srv.URL, client: srv.Client()}
	_, err := c.CheckOverlap(context.Background(), capture.OverlapRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCheckOverlapBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":"not a json object"}`))
	}))
	defer srv.Close()

	c := &ApiClient{base: srv.URL, client: srv.Client()}
	_, err := c.CheckOverlap(context.Background(), capture.OverlapRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "压盖结果解析失败")
}

func TestFetchNearbyQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/nearby/parcels", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "form-2", q.Get("formId"))
		assert.Equal(t, "geom", q.Get("geometryFieldId"))
		assert.Equal(t, "116.100000,39.500000,116.200000,39.600000", q.Get("bounds"))
		assert.Equal(t, "名称,面积", q.Get("returnFields"))
		assert.Equal(t, "30", q.Get("maxResults"))
		assert.False(t, q.Has("filterCondition"))
		assert.False(t, q.Has("excludeRecordId"))
		w.Write([]byte(`{"data":"{\"type\":\"FeatureCollection\",\"features\":[]}"}`))
	}))
	defer srv.Close()

	c := &ApiClient{base: srv.URL, client: srv.Client()}
	body, err := c.FetchNearby(context.Background(), capture.NearbyRequest{
		FormId:          "form-2",
		GeometryFieldId: "geom",
		Bounds:          capture.FormatBounds(116.1, 39.5, 116.2, 39.6),
		ReturnFields:    "名称,面积",
		MaxResults:      30,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(body))
}
