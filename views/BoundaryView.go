package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/GrainArc/LandCollect/Transformer"
	"github.com/GrainArc/LandCollect/metrics"
	"github.com/GrainArc/LandCollect/methods"
	"github.com/GrainArc/LandCollect/models"
	"github.com/GrainArc/LandCollect/polygon"
	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

// 边界成果的增删查与导入导出

type BoundaryController struct {
	service *services.BoundaryService
}

func NewBoundaryController() *BoundaryController {
	return &BoundaryController{service: services.NewBoundaryService(models.DB)}
}

// SaveBoundary 不经采集会话直接落库，几何指标服务端重算
func (bc *BoundaryController) SaveBoundary(c *gin.Context) {
	var req SaveBoundaryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ring, err := polygon.ImportGeometry(req.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := polygon.Compute(ring)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "图形指标计算失败: " + err.Error()})
		return
	}
	geometry, err := ring.ExportGeometry()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := bc.service.SaveBoundary(services.SaveBoundaryInput{
		BSM:        req.BSM,
		FormId:     req.FormId,
		Name:       req.Name,
		XZQMC:      req.XZQMC,
		CMC:        req.CMC,
		MAC:        req.MAC,
		Geometry:   geometry,
		Metrics:    m,
		Attributes: req.Attributes,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, map[string]string{"bsm": b.BSM})
}

// GetBoundary 按编号取单条
func (bc *BoundaryController) GetBoundary(c *gin.Context) {
	bsm := c.Query("bsm")
	if bsm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bsm参数不能为空"})
		return
	}
	b, err := bc.service.GetBoundary(bsm)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "地块不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetBoundaryList 按表单过滤，关键字匹配名称或拼音简码
func (bc *BoundaryController) GetBoundaryList(c *gin.Context) {
	list, err := bc.service.ListBoundaries(c.Query("form_id"), c.Query("keyword"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (bc *BoundaryController) DelBoundary(c *gin.Context) {
	bsm := c.Query("bsm")
	if bsm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bsm参数不能为空"})
		return
	}
	if err := bc.service.DeleteBoundary(bsm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// GetDraft 断线恢复：取会话草稿
func (bc *BoundaryController) GetDraft(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id参数不能为空"})
		return
	}
	d, err := bc.service.GetDraft(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "草稿不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

// DownloadBoundary 成果导出，写入OutFile后返回静态路径
func (bc *BoundaryController) DownloadBoundary(c *gin.Context) {
	var req DownloadBoundaryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := bc.selectBoundaries(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(list) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "没有可导出的地块"})
		return
	}

	taskid := uuid.New().String()
	outDir := filepath.Join("OutFile", taskid)
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	format := strings.ToLower(req.Format)
	switch format {
	case "kml":
		f, err := os.Create(filepath.Join(outDir, "采集成果.kml"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		err = Transformer.BoundariesToKml(list, "采集成果", f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.BoundariesExportedTotal.WithLabelValues("kml").Add(float64(len(list)))
		c.String(http.StatusOK, "/OutFile/"+taskid+"/采集成果.kml")
	case "shp":
		if err := Transformer.ConvertBoundariesToShp(list, filepath.Join(outDir, "采集成果.shp")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		absolutePath, _ := filepath.Abs(outDir)
		if err := methods.ZipFolder(absolutePath, "采集成果"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.BoundariesExportedTotal.WithLabelValues("shp").Add(float64(len(list)))
		c.String(http.StatusOK, "/OutFile/"+taskid+"/采集成果.zip")
	default:
		fc := geojson.NewFeatureCollection()
		for _, b := range list {
			f, err := boundaryFeature(b)
			if err != nil {
				log.Printf("地块 %s 几何解析失败: %v", b.BSM, err)
				continue
			}
			fc.Append(f)
		}
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := os.WriteFile(filepath.Join(outDir, "采集成果.geojson"), data, 0666); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.BoundariesExportedTotal.WithLabelValues("geojson").Add(float64(len(list)))
		c.String(http.StatusOK, "/OutFile/"+taskid+"/采集成果.geojson")
	}
}

// selectBoundaries 指定编号优先，否则按表单加关键字筛选
func (bc *BoundaryController) selectBoundaries(req DownloadBoundaryReq) ([]models.Boundary, error) {
	if len(req.Bsms) > 0 {
		var list []models.Boundary
		for _, bsm := range req.Bsms {
			b, err := bc.service.GetBoundary(bsm)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			list = append(list, *b)
		}
		return list, nil
	}
	return bc.service.ListBoundaries(req.FormId, req.Keyword)
}

func boundaryFeature(b models.Boundary) (*geojson.Feature, error) {
	g, err := geojson.UnmarshalGeometry(b.Geojson)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(g.Geometry())
	f.ID = b.BSM
	f.Properties = geojson.Properties{
		"bsm":          b.BSM,
		"form_id":      b.FormId,
		"name":         b.Name,
		"xzqmc":        b.XZQMC,
		"cmc":          b.CMC,
		"date":         b.Date,
		"area_ha":      b.AreaHectare,
		"perimeter":    b.Perimeter,
		"vertex_count": b.VertexCount,
	}
	if len(b.Attributes) > 0 {
		attrs := map[string]interface{}{}
		if err := json.Unmarshal(b.Attributes, &attrs); err == nil {
			for k, v := range attrs {
				f.Properties[k] = v
			}
		}
	}
	return f, nil
}

// UploadBoundary 文件导入，支持shp kml geojson及其zip/rar压缩包
func (bc *BoundaryController) UploadBoundary(c *gin.Context) {
	formId := c.PostForm("form_id")
	mac := c.PostForm("mac")
	taskid := uuid.New().String()

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请上传文件"})
		return
	}
	path, _ := filepath.Abs("./TempFile/" + taskid + "/" + file.Filename)
	dirpath := filepath.Dir(path)
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.String(500, "Internal server error")
		return
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" || ext == ".rar" {
		if err := methods.Unzip(path); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "解压失败: " + err.Error()})
			return
		}
	}
	defer func() {
		if err := methods.DeleteFiles(dirpath); err != nil {
			log.Printf("临时文件清理失败: %v", err)
		}
	}()

	bsms, err := bc.importFromDir(dirpath, formId, mac)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(bsms), "bsms": bsms})
}

// importFromDir 按shp/kml/geojson的顺序扫描目录，导入第一种命中的格式
func (bc *BoundaryController) importFromDir(dirpath, formId, mac string) ([]string, error) {
	if shpfiles := Transformer.FindFiles(dirpath, "shp"); len(shpfiles) > 0 {
		var bsms []string
		for _, item := range shpfiles {
			fc, err := Transformer.ConvertShpToGeojson(item)
			if err != nil {
				log.Printf("SHP解析失败 %s: %v", item, err)
				continue
			}
			got, err := bc.importFeatures(fc, formId, mac, "shp")
			if err != nil {
				log.Printf("SHP导入失败 %s: %v", item, err)
				continue
			}
			bsms = append(bsms, got...)
		}
		if len(bsms) == 0 {
			return nil, errors.New("SHP中没有可导入的面要素")
		}
		return bsms, nil
	}

	if kmlfiles := Transformer.FindFiles(dirpath, "kml"); len(kmlfiles) > 0 {
		var bsms []string
		for _, item := range kmlfiles {
			fc, err := Transformer.KmlToGeojson(item)
			if err != nil {
				log.Printf("KML解析失败 %s: %v", item, err)
				continue
			}
			got, err := bc.importFeatures(fc, formId, mac, "kml")
			if err != nil {
				log.Printf("KML导入失败 %s: %v", item, err)
				continue
			}
			bsms = append(bsms, got...)
		}
		if len(bsms) == 0 {
			return nil, errors.New("KML中没有可导入的面要素")
		}
		return bsms, nil
	}

	if jsonfiles := Transformer.FindFiles(dirpath, "geojson"); len(jsonfiles) > 0 {
		var bsms []string
		for _, item := range jsonfiles {
			data, err := os.ReadFile(item)
			if err != nil {
				continue
			}
			fc, err := geojson.UnmarshalFeatureCollection(data)
			if err != nil {
				log.Printf("GeoJSON解析失败 %s: %v", item, err)
				continue
			}
			got, err := bc.importFeatures(fc, formId, mac, "geojson")
			if err != nil {
				log.Printf("GeoJSON导入失败 %s: %v", item, err)
				continue
			}
			bsms = append(bsms, got...)
		}
		if len(bsms) == 0 {
			return nil, errors.New("GeoJSON中没有可导入的面要素")
		}
		return bsms, nil
	}

	return nil, errors.New("未找到shp/kml/geojson数据")
}

// ImportBoundary 请求体直接提交FeatureCollection
func (bc *BoundaryController) ImportBoundary(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的GeoJSON格式: " + err.Error()})
		return
	}
	bsms, err := bc.importFeatures(fc, c.Query("form_id"), c.Query("mac"), "geojson")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(bsms), "bsms": bsms})
}

// importFeatures 逐要素落库，MultiPolygon拆成多个地块
func (bc *BoundaryController) importFeatures(fc *geojson.FeatureCollection, formId, mac, format string) ([]string, error) {
	if len(fc.Features) == 0 {
		return nil, errors.New("没有要素数据")
	}

	var bsms []string
	for index, feature := range fc.Features {
		var rings []orb.Ring
		switch geom := feature.Geometry.(type) {
		case orb.Polygon:
			if len(geom) > 0 {
				rings = append(rings, geom[0])
			}
		case orb.MultiPolygon:
			for _, poly := range geom {
				if len(poly) > 0 {
					rings = append(rings, poly[0])
				}
			}
		default:
			continue
		}

		name := featureName(feature, index)
		for _, r := range rings {
			ring := polygon.FromOrbRing(r)
			m, err := polygon.Compute(ring)
			if err != nil {
				log.Printf("要素 %s 指标计算失败: %v", name, err)
				continue
			}
			geometry, err := ring.ExportGeometry()
			if err != nil {
				log.Printf("要素 %s 几何导出失败: %v", name, err)
				continue
			}
			b, err := bc.service.SaveBoundary(services.SaveBoundaryInput{
				FormId:     formId,
				Name:       name,
				MAC:        mac,
				Geometry:   geometry,
				Metrics:    m,
				Attributes: feature.Properties,
			})
			if err != nil {
				log.Printf("要素 %s 保存失败: %v", name, err)
				continue
			}
			bsms = append(bsms, b.BSM)
		}
	}
	if len(bsms) == 0 {
		return nil, errors.New("没有可导入的面要素")
	}
	metrics.BoundariesImportedTotal.WithLabelValues(format).Add(float64(len(bsms)))
	return bsms, nil
}

// featureName 取属性里的名称，取不到时按序号命名
func featureName(feature *geojson.Feature, index int) string {
	for _, key := range []string{"name", "Name", "NAME", "名称"} {
		if v, ok := feature.Properties[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("导入地块%d", index+1)
}
