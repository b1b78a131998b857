package views

import (
	"encoding/json"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/polygon"
)

// SaveBoundaryReq 地块保存请求，REST与WebSocket共用
type SaveBoundaryReq struct {
	BSM        string                 `json:"bsm"`
	FormId     string                 `json:"form_id"`
	Name       string                 `json:"name"`
	XZQMC      string                 `json:"xzqmc"`
	CMC        string                 `json:"cmc"`
	MAC        string                 `json:"mac"`
	Geometry   json.RawMessage        `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes"`
}

// DownloadBoundaryReq 成果导出请求
type DownloadBoundaryReq struct {
	Format  string   `json:"format"` // kml shp geojson
	FormId  string   `json:"form_id"`
	Keyword string   `json:"keyword"`
	Bsms    []string `json:"bsms"`
}

// CapturePush 采集会话的服务端推送消息
type CapturePush struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	State     *capture.StateSnapshot  `json:"state,omitempty"`
	Options   *capture.Options        `json:"options,omitempty"`
	Geometry  json.RawMessage         `json:"geometry,omitempty"`
	Metrics   *polygon.Metrics        `json:"metrics,omitempty"`
	Errors    []string                `json:"errors,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Records   []capture.OverlapRecord `json:"records,omitempty"`
	Pending   bool                    `json:"pending,omitempty"`
	Lat       float64                 `json:"lat,omitempty"`
	Lng       float64                 `json:"lng,omitempty"`
	Zoom      int                     `json:"zoom,omitempty"`
	Distance  float64                 `json:"distance,omitempty"`
	Gps       *capture.GpsStatus      `json:"gps,omitempty"`
	Features  json.RawMessage         `json:"features,omitempty"`
	Bsm       string                  `json:"bsm,omitempty"`
}
