package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/methods"
	"github.com/GrainArc/LandCollect/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

// NearbyService 周边地块查询：按视窗范围扫描同表单地块
type NearbyService struct {
	DB *gorm.DB
}

func NewNearbyService(db *gorm.DB) *NearbyService {
	return &NearbyService{DB: db}
}

// FetchNearby 返回与视窗相交的地块要素集
func (s *NearbyService) FetchNearby(ctx context.Context, req capture.NearbyRequest) ([]byte, error) {
	bound, err := ParseBounds(req.Bounds)
	if err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Model(&models.Boundary{})
	if req.FormId != "" {
		query = query.Where("form_id = ?", req.FormId)
	}
	if req.ExcludeRecordId != "" {
		query = query.Where("bsm <> ?", req.ExcludeRecordId)
	}
	if req.FilterCondition != "" {
		query = query.Where(req.FilterCondition)
	}
	var boundaries []models.Boundary
	if err := query.Find(&boundaries).Error; err != nil {
		return nil, err
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	fields := splitReturnFields(req.ReturnFields)

	fc := geojson.NewFeatureCollection()
	for _, b := range boundaries {
		if len(fc.Features) >= maxResults {
			break
		}
		g, err := geojson.UnmarshalGeometry(b.Geojson)
		if err != nil {
			log.Printf("地块 %s 几何解析失败: %v", b.BSM, err)
			continue
		}
		geom := g.Geometry()
		if !bound.Intersects(geom.Bound()) {
			continue
		}
		f := geojson.NewFeature(geom)
		f.ID = b.BSM
		f.Properties = s.featureProperties(b, fields)
		fc.Append(f)
	}
	return json.Marshal(fc)
}

func (s *NearbyService) featureProperties(b models.Boundary, fields []string) geojson.Properties {
	props := geojson.Properties{
		"bsm":          b.BSM,
		"name":         b.Name,
		"area_ha":      b.AreaHectare,
		"vertex_count": b.VertexCount,
	}
	if len(fields) == 0 {
		return props
	}
	attrs := map[string]interface{}{}
	if len(b.Attributes) > 0 {
		if err := json.Unmarshal(b.Attributes, &attrs); err == nil {
			for k, v := range attrs {
				if methods.IsStringInSlice(k, fields) {
					props[k] = v
				}
			}
		}
	}
	return props
}

// ParseBounds 解析 west,south,east,north 范围串
func ParseBounds(raw string) (orb.Bound, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("范围格式应为west,south,east,north: %q", raw)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("范围数值解析失败: %q", p)
		}
		vals[i] = v
	}
	return orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}, nil
}

func splitReturnFields(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
