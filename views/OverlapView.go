package views

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/metrics"
	"github.com/GrainArc/LandCollect/models"
	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
)

// 内置压盖与周边查询接口
// 采集引擎统一走HTTP访问这两个入口，不做进程内直调

type OverlapController struct {
	overlapService *services.OverlapService
	nearbyService  *services.NearbyService
}

func NewOverlapController() *OverlapController {
	return &OverlapController{
		overlapService: services.NewOverlapService(models.DB),
		nearbyService:  services.NewNearbyService(models.DB),
	}
}

// CheckOverlap 压盖检查
// 回包把结果JSON装进data字符串，与历史开放接口的双重编码约定保持一致
func (oc *OverlapController) CheckOverlap(c *gin.Context) {
	var req capture.OverlapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	metrics.OverlapChecksTotal.Inc()
	start := time.Now()
	result, err := oc.overlapService.CheckOverlap(c.Request.Context(), req)
	metrics.OverlapCheckDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.OverlapCheckFailTotal.Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		metrics.OverlapCheckFailTotal.Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": string(payload)})
}

// NearbyParcels 视窗内的周边地块，返回要素集
func (oc *OverlapController) NearbyParcels(c *gin.Context) {
	maxResults, _ := strconv.Atoi(c.Query("maxResults"))
	req := capture.NearbyRequest{
		FormId:          c.Query("formId"),
		GeometryFieldId: c.Query("geometryFieldId"),
		Bounds:          c.Query("bounds"),
		FilterCondition: c.Query("filterCondition"),
		ReturnFields:    c.Query("returnFields"),
		MaxResults:      maxResults,
		ExcludeRecordId: c.Query("excludeRecordId"),
	}

	metrics.NearbyQueriesTotal.Inc()
	features, err := oc.nearbyService.FetchNearby(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": string(features)})
}
