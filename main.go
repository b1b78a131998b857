package main

import (
	"log"

	"github.com/GrainArc/LandCollect/config"
	"github.com/GrainArc/LandCollect/models"
	"github.com/GrainArc/LandCollect/routers"
	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Printf("服务地址: %s", config.MainRouter)
	log.Printf("数据目录: %s", config.Download)

	models.InitDB()
	services.InitGeocodeService(config.GeocodeURL)
	services.InitTileService(models.DB)

	r := gin.Default()
	routers.GeoRouters(r)

	if err := r.Run(config.MainRouter); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}
