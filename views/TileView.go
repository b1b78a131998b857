package views

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/GrainArc/LandCollect/metrics"
	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
)

// 底图瓦片代理

type TileController struct{}

func NewTileController() *TileController {
	return &TileController{}
}

// GetTile 取一张底图瓦片，命中缓存时不访问上游
func (tc *TileController) GetTile(c *gin.Context) {
	z, _ := strconv.Atoi(c.Param("z"))
	x, _ := strconv.Atoi(c.Param("x"))
	y, _ := strconv.Atoi(strings.TrimSuffix(c.Param("y"), ".png"))

	svc := services.GetTileService()
	if svc == nil {
		c.String(http.StatusServiceUnavailable, "瓦片服务未初始化")
		return
	}

	metrics.TileRequestsTotal.Inc()
	data, err := svc.FetchTile(z, x, y)
	if err != nil {
		metrics.TileFetchFailTotal.Inc()
		c.String(http.StatusBadGateway, "瓦片获取失败")
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// ClearTileCache 清空本地瓦片缓存
func (tc *TileController) ClearTileCache(c *gin.Context) {
	svc := services.GetTileService()
	if svc == nil {
		c.String(http.StatusServiceUnavailable, "瓦片服务未初始化")
		return
	}
	if err := svc.ClearCache(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "缓存已清空"})
}
