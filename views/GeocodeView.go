package views

import (
	"net/http"

	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
)

// 地名检索，自动定心的回退链与前端搜索框共用

type GeocodeController struct{}

func NewGeocodeController() *GeocodeController {
	return &GeocodeController{}
}

// SearchPlace 正向地理编码，候选结果带缓存
func (gc *GeocodeController) SearchPlace(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q参数不能为空"})
		return
	}
	svc := services.GetGeocodeService()
	if svc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "地名服务未初始化"})
		return
	}
	candidates, err := svc.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, candidates)
}
