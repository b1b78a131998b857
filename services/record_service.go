package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/methods"
	"github.com/GrainArc/LandCollect/models"
	"github.com/GrainArc/LandCollect/polygon"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BoundaryService 地块边界与采集草稿的读写
type BoundaryService struct {
	DB *gorm.DB
}

func NewBoundaryService(db *gorm.DB) *BoundaryService {
	return &BoundaryService{DB: db}
}

// SaveBoundaryInput 保存请求，Geometry为闭合GeoJSON Polygon
type SaveBoundaryInput struct {
	BSM          string
	FormId       string
	Name         string
	XZQMC        string
	CMC          string
	MAC          string
	Geometry     json.RawMessage
	Metrics      *polygon.Metrics
	Attributes   map[string]interface{}
	OutputFields capture.OutputFields
}

// SaveBoundary 落库采集结果，面积周长等派生值按配置的字段号一并写入属性
// BSM已存在时整条覆盖，空BSM自动生成
func (s *BoundaryService) SaveBoundary(in SaveBoundaryInput) (*models.Boundary, error) {
	if len(in.Geometry) == 0 {
		return nil, errors.New("几何不能为空")
	}
	if in.Metrics == nil {
		return nil, errors.New("图形指标不能为空")
	}
	bsm := in.BSM
	if bsm == "" {
		bsm = uuid.New().String()
	}

	attrs := methods.MergeMaps(in.Attributes, derivedFields(in.Metrics, in.OutputFields))
	attrJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("属性序列化失败: %w", err)
	}

	b := models.Boundary{
		BSM:         bsm,
		FormId:      in.FormId,
		Name:        in.Name,
		Sname:       methods.ConvertToInitials(in.Name),
		XZQMC:       in.XZQMC,
		CMC:         in.CMC,
		MAC:         in.MAC,
		Date:        time.Now().Format("2006-01-02 15:04:05"),
		AreaHectare: round4(in.Metrics.AreaHectares),
		Perimeter:   round2(in.Metrics.PerimeterMeters),
		CentroidLat: in.Metrics.Centroid.Lat,
		CentroidLng: in.Metrics.Centroid.Lng,
		VertexCount: in.Metrics.VertexCount,
		Geojson:     datatypes.JSON(in.Geometry),
		Attributes:  datatypes.JSON(attrJSON),
	}

	var existing models.Boundary
	err = s.DB.Where("bsm = ?", bsm).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.DB.Create(&b).Error
	case err == nil:
		err = s.DB.Save(&b).Error
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// derivedFields 按字段号生成派生属性，质心写成GeoJSON Point
func derivedFields(m *polygon.Metrics, f capture.OutputFields) map[string]interface{} {
	out := map[string]interface{}{}
	if f.AreaFieldId != "" {
		out[f.AreaFieldId] = round4(m.AreaHectares)
	}
	if f.PerimeterFieldId != "" {
		out[f.PerimeterFieldId] = round2(m.PerimeterMeters)
	}
	if f.CentroidFieldId != "" {
		out[f.CentroidFieldId] = map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{m.Centroid.Lng, m.Centroid.Lat},
		}
	}
	if f.VertexCountFieldId != "" {
		out[f.VertexCountFieldId] = m.VertexCount
	}
	return out
}

// GetBoundary 按编号取单条
func (s *BoundaryService) GetBoundary(bsm string) (*models.Boundary, error) {
	var b models.Boundary
	if err := s.DB.Where("bsm = ?", bsm).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBoundaries 按表单过滤，关键字同时匹配名称与拼音简码
func (s *BoundaryService) ListBoundaries(formId, keyword string) ([]models.Boundary, error) {
	query := s.DB.Model(&models.Boundary{})
	if formId != "" {
		query = query.Where("form_id = ?", formId)
	}
	if keyword != "" {
		pat := "%" + keyword + "%"
		initials := "%" + methods.ConvertToInitials(keyword) + "%"
		query = query.Where("name LIKE ? OR sname LIKE ?", pat, initials)
	}
	var list []models.Boundary
	if err := query.Order("date DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteBoundary 删除边界并清理关联草稿
func (s *BoundaryService) DeleteBoundary(bsm string) error {
	if err := s.DB.Where("bsm = ?", bsm).Delete(&models.Boundary{}).Error; err != nil {
		return err
	}
	return s.DB.Where("bsm = ?", bsm).Delete(&models.CaptureDraft{}).Error
}

// SaveDraft 会话快照按SessionID覆盖写入，断线后凭此恢复
func (s *BoundaryService) SaveDraft(d *models.CaptureDraft) error {
	var existing models.CaptureDraft
	err := s.DB.Where("session_id = ?", d.SessionID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.DB.Create(d).Error
	case err != nil:
		return err
	}
	return s.DB.Save(d).Error
}

func (s *BoundaryService) GetDraft(sessionID string) (*models.CaptureDraft, error) {
	var d models.CaptureDraft
	if err := s.DB.Where("session_id = ?", sessionID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkDraft 更新草稿状态 active/completed/discarded
func (s *BoundaryService) MarkDraft(sessionID, status string) error {
	return s.DB.Model(&models.CaptureDraft{}).Where("session_id = ?", sessionID).Update("status", status).Error
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
