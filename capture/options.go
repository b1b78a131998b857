package capture

import (
	"strings"

	"github.com/GrainArc/LandCollect/config"
)

// 采集方式
const (
	ModeDraw = "DRAW"
	ModeWalk = "WALK"
)

// 采集阶段
const (
	PhaseEmpty   = "EMPTY"
	PhaseSelect  = "SELECT"
	PhaseDrawing = "DRAWING"
	PhasePreview = "PREVIEW"
	PhaseSaved   = "SAVED"
	PhaseView    = "VIEW"
)

// Options 单个采集会话的完整配置
// 由config默认值生成，start消息的JSON可逐项覆盖
type Options struct {
	ApiBase             string            `json:"apiBase,omitempty"`
	RecordId            string            `json:"recordId,omitempty"`
	OutputFields        OutputFields      `json:"outputFields"`
	CaptureMode         string            `json:"captureMode,omitempty"` // BOTH WALK DRAW VIEW_ONLY
	DefaultMode         string            `json:"defaultMode,omitempty"` // AUTO WALK DRAW
	DefaultLatitude     float64           `json:"defaultLatitude,omitempty"`
	DefaultLongitude    float64           `json:"defaultLongitude,omitempty"`
	DefaultZoom         int               `json:"defaultZoom,omitempty"`
	TileProvider        string            `json:"tileProvider,omitempty"`
	ShowSatelliteOption bool              `json:"showSatelliteOption,omitempty"`
	MapHeight           int               `json:"mapHeight,omitempty"`
	Validation          ValidationOptions `json:"validation"`
	Gps                 GpsOptions        `json:"gps"`
	Style               StyleOptions      `json:"style"`
	Overlap             OverlapOptions    `json:"overlap"`
	NearbyParcels       NearbyOptions     `json:"nearbyParcels"`
	AutoCenter          CenterOptions     `json:"autoCenter"`
}

type OutputFields struct {
	AreaFieldId        string `json:"areaFieldId,omitempty"`
	PerimeterFieldId   string `json:"perimeterFieldId,omitempty"`
	CentroidFieldId    string `json:"centroidFieldId,omitempty"`
	VertexCountFieldId string `json:"vertexCountFieldId,omitempty"`
}

type ValidationOptions struct {
	MinAreaHectares       float64 `json:"minAreaHectares,omitempty"`
	MaxAreaHectares       float64 `json:"maxAreaHectares,omitempty"`
	MinVertices           int     `json:"minVertices,omitempty"`
	MaxVertices           int     `json:"maxVertices,omitempty"`
	AllowSelfIntersection bool    `json:"allowSelfIntersection,omitempty"`
}

type GpsOptions struct {
	HighAccuracy      bool    `json:"highAccuracy,omitempty"`
	MinAccuracy       float64 `json:"minAccuracy,omitempty"`
	AutoCloseDistance float64 `json:"autoCloseDistance,omitempty"`
}

type StyleOptions struct {
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	StrokeColor string  `json:"strokeColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

type OverlapOptions struct {
	Enabled              bool     `json:"enabled,omitempty"`
	FormId               string   `json:"formId,omitempty"`
	GeometryField        string   `json:"geometryField,omitempty"`
	FilterCondition      string   `json:"filterCondition,omitempty"`
	DisplayFields        []string `json:"displayFields,omitempty"`
	MinOverlapPercent    float64  `json:"minOverlapPercent,omitempty"`
	MaxResults           int      `json:"maxResults,omitempty"`
	IncludeGeometry      bool     `json:"includeGeometry,omitempty"`
	SelfShrinkPercent    float64  `json:"selfShrinkPercent,omitempty"`
	SelfUnchangedPercent float64  `json:"selfUnchangedPercent,omitempty"`
	SelfUnchangedAreaTol float64  `json:"selfUnchangedAreaTol,omitempty"`
	SelfExpandAreaTol    float64  `json:"selfExpandAreaTol,omitempty"`
	SelfExpandBackupTol  float64  `json:"selfExpandBackupTol,omitempty"`
}

type NearbyOptions struct {
	Enabled      string   `json:"enabled,omitempty"` // DISABLED ON_LOAD ON_DEMAND
	MaxResults   int      `json:"maxResults,omitempty"`
	ReturnFields []string `json:"returnFields,omitempty"`
}

type CenterOptions struct {
	Enabled            bool   `json:"enabled,omitempty"`
	DistrictFieldId    string `json:"districtFieldId,omitempty"`
	VillageFieldId     string `json:"villageFieldId,omitempty"`
	LatFieldId         string `json:"latFieldId,omitempty"`
	LonFieldId         string `json:"lonFieldId,omitempty"`
	RetryOnFieldChange bool   `json:"retryOnFieldChange,omitempty"`
	Zoom               int    `json:"zoom,omitempty"`
	CountrySuffix      string `json:"countrySuffix,omitempty"`
}

// DefaultOptions 从config.xml生成默认配置
func DefaultOptions() Options {
	c := config.MainConfig.Capture
	return Options{
		ApiBase:             config.ApiBase,
		CaptureMode:         c.CaptureMode,
		DefaultMode:         c.DefaultMode,
		DefaultLatitude:     c.DefaultLatitude,
		DefaultLongitude:    c.DefaultLongitude,
		DefaultZoom:         c.DefaultZoom,
		TileProvider:        config.TileProvider,
		ShowSatelliteOption: c.ShowSatelliteOption,
		MapHeight:           c.MapHeight,
		Validation: ValidationOptions{
			MinAreaHectares:       c.MinAreaHectares,
			MaxAreaHectares:       c.MaxAreaHectares,
			MinVertices:           c.MinVertices,
			MaxVertices:           c.MaxVertices,
			AllowSelfIntersection: c.AllowSelfIntersect,
		},
		Gps: GpsOptions{
			HighAccuracy:      c.GpsHighAccuracy,
			MinAccuracy:       c.GpsMinAccuracy,
			AutoCloseDistance: c.GpsAutoCloseDistance,
		},
		Style: StyleOptions{
			FillColor:   c.FillColor,
			FillOpacity: c.FillOpacity,
			StrokeColor: c.StrokeColor,
			StrokeWidth: c.StrokeWidth,
		},
		Overlap: OverlapOptions{
			Enabled:              c.Overlap.Enabled,
			FormId:               c.Overlap.FormId,
			GeometryField:        c.Overlap.GeometryField,
			FilterCondition:      c.Overlap.FilterCondition,
			DisplayFields:        splitFields(c.Overlap.DisplayFields),
			MinOverlapPercent:    c.Overlap.MinOverlapPercent,
			MaxResults:           c.Overlap.MaxResults,
			IncludeGeometry:      c.Overlap.IncludeGeometry,
			SelfShrinkPercent:    c.Overlap.SelfShrinkPercent,
			SelfUnchangedPercent: c.Overlap.SelfUnchangedPercent,
			SelfUnchangedAreaTol: c.Overlap.SelfUnchangedAreaTol,
			SelfExpandAreaTol:    c.Overlap.SelfExpandAreaTol,
			SelfExpandBackupTol:  c.Overlap.SelfExpandBackupTol,
		},
		NearbyParcels: NearbyOptions{
			Enabled:      c.Nearby.Enabled,
			MaxResults:   c.Nearby.MaxResults,
			ReturnFields: splitFields(c.Nearby.ReturnFields),
		},
		AutoCenter: CenterOptions{
			Enabled:            c.AutoCenter.Enabled,
			DistrictFieldId:    c.AutoCenter.DistrictFieldId,
			VillageFieldId:     c.AutoCenter.VillageFieldId,
			LatFieldId:         c.AutoCenter.LatFieldId,
			LonFieldId:         c.AutoCenter.LonFieldId,
			RetryOnFieldChange: c.AutoCenter.RetryOnFieldChange,
			Zoom:               c.AutoCenter.Zoom,
			CountrySuffix:      c.AutoCenter.CountrySuffix,
		},
	}
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsMobileUA 粗略判断是否移动端，用于AUTO模式下的方式选择
func IsMobileUA(ua string) bool {
	ua = strings.ToLower(ua)
	for _, kw := range []string{"android", "iphone", "ipad", "mobile", "harmonyos"} {
		if strings.Contains(ua, kw) {
			return true
		}
	}
	return false
}
