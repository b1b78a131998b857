package services

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strconv"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	sfgeom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"
)

// OverlapService 内置压盖计算引擎
// 对库内同表单的地块逐个求交，外包框预筛后用DCEL布尔运算求交集面
type OverlapService struct {
	DB *gorm.DB
}

func NewOverlapService(db *gorm.DB) *OverlapService {
	return &OverlapService{DB: db}
}

// CheckOverlap 计算输入图形与已存地块的压盖
func (s *OverlapService) CheckOverlap(ctx context.Context, req capture.OverlapRequest) (*capture.OverlapResult, error) {
	inputGeom, err := geojson.UnmarshalGeometry(req.Geometry)
	if err != nil {
		return nil, err
	}
	inputOrb := inputGeom.Geometry()
	inputArea := math.Abs(geo.Area(inputOrb))
	if inputArea <= 0 {
		return &capture.OverlapResult{}, nil
	}
	inputBound := inputOrb.Bound()

	var inputSF sfgeom.Geometry
	if err := json.Unmarshal(req.Geometry, &inputSF); err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Model(&models.Boundary{})
	if req.Target.FormId != "" {
		query = query.Where("form_id = ?", req.Target.FormId)
	}
	if req.Target.ExcludeRecordId != "" {
		query = query.Where("bsm <> ?", req.Target.ExcludeRecordId)
	}
	if req.Target.FilterCondition != "" {
		query = query.Where(req.Target.FilterCondition)
	}
	var boundaries []models.Boundary
	if err := query.Find(&boundaries).Error; err != nil {
		return nil, err
	}

	maxResults := req.Options.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	result := &capture.OverlapResult{}
	for _, b := range boundaries {
		if len(result.Overlaps) >= maxResults {
			break
		}
		rec, ok := s.overlapWith(inputSF, inputBound, inputArea, b, req.Options)
		if ok {
			result.Overlaps = append(result.Overlaps, rec)
		}
	}
	result.HasOverlaps = len(result.Overlaps) > 0
	return result, nil
}

// overlapWith 单个地块的求交，几何解析失败的记录跳过不报错
func (s *OverlapService) overlapWith(input sfgeom.Geometry, inputBound orb.Bound, inputArea float64, b models.Boundary, opts capture.OverlapQueryOptions) (capture.OverlapRecord, bool) {
	stored, err := geojson.UnmarshalGeometry(b.Geojson)
	if err != nil {
		log.Printf("地块 %s 几何解析失败: %v", b.BSM, err)
		return capture.OverlapRecord{}, false
	}
	storedOrb := stored.Geometry()
	if !inputBound.Intersects(storedOrb.Bound()) {
		return capture.OverlapRecord{}, false
	}

	var storedSF sfgeom.Geometry
	if err := json.Unmarshal(b.Geojson, &storedSF); err != nil {
		log.Printf("地块 %s 几何不合法，跳过压盖计算: %v", b.BSM, err)
		return capture.OverlapRecord{}, false
	}
	inter, err := sfgeom.Intersection(input, storedSF)
	if err != nil {
		log.Printf("地块 %s 求交失败: %v", b.BSM, err)
		return capture.OverlapRecord{}, false
	}
	if inter.IsEmpty() {
		return capture.OverlapRecord{}, false
	}
	interJSON, err := json.Marshal(inter)
	if err != nil {
		return capture.OverlapRecord{}, false
	}
	interGeom, err := geojson.UnmarshalGeometry(interJSON)
	if err != nil {
		return capture.OverlapRecord{}, false
	}
	interArea := math.Abs(geo.Area(interGeom.Geometry()))
	if interArea <= 0 {
		return capture.OverlapRecord{}, false
	}

	percent := interArea / inputArea * 100
	if percent < opts.MinOverlapPercent {
		return capture.OverlapRecord{}, false
	}

	rec := capture.OverlapRecord{
		RecordId:              b.BSM,
		RecordData:            s.displayData(b, opts.ReturnFields),
		OverlapAreaHectares:   round4(interArea / 10000),
		OverlapPercentOfInput: round2(percent),
	}
	if opts.IncludeOverlapGeometry {
		rec.OverlapGeometry = interJSON
	}
	return rec, true
}

// displayData 从地块属性中取出展示字段，字段名找不到时回落到基础列
func (s *OverlapService) displayData(b models.Boundary, fields []string) map[string]string {
	if len(fields) == 0 {
		return map[string]string{"名称": b.Name}
	}
	attrs := map[string]interface{}{}
	if len(b.Attributes) > 0 {
		if err := json.Unmarshal(b.Attributes, &attrs); err != nil {
			log.Printf("地块 %s 属性解析失败: %v", b.BSM, err)
		}
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := attrs[f]; ok {
			out[f] = toText(v)
			continue
		}
		switch f {
		case "name", "名称":
			out[f] = b.Name
		case "xzqmc", "行政区":
			out[f] = b.XZQMC
		case "cmc", "村名":
			out[f] = b.CMC
		}
	}
	return out
}

func toText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}
