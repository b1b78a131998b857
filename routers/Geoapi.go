package routers

import (
	"github.com/GrainArc/LandCollect/config"
	"github.com/GrainArc/LandCollect/metrics"
	"github.com/GrainArc/LandCollect/views"
	"github.com/gin-gonic/gin"
)

func GeoRouters(r *gin.Engine) {
	captureHandler := views.NewCaptureHandler()
	boundaryCtrl := views.NewBoundaryController()
	overlapCtrl := views.NewOverlapController()
	geocodeCtrl := views.NewGeocodeController()
	tileCtrl := views.NewTileController()

	collectRouter := r.Group("/collect")
	{
		// 采集会话，升级到WebSocket
		collectRouter.GET("/Session", captureHandler.CaptureWS)
		collectRouter.GET("/CaptureOptions", captureHandler.CaptureOptions)

		collectRouter.POST("/SaveBoundary", boundaryCtrl.SaveBoundary)
		collectRouter.GET("/GetBoundary", boundaryCtrl.GetBoundary)
		collectRouter.GET("/GetBoundaryList", boundaryCtrl.GetBoundaryList)
		collectRouter.GET("/DelBoundary", boundaryCtrl.DelBoundary)
		collectRouter.GET("/GetDraft", boundaryCtrl.GetDraft)

		collectRouter.POST("/DownloadBoundary", boundaryCtrl.DownloadBoundary)
		collectRouter.POST("/UploadBoundary", boundaryCtrl.UploadBoundary)
		collectRouter.POST("/ImportBoundary", boundaryCtrl.ImportBoundary)
		collectRouter.Static("/OutFile", "./OutFile")
	}

	// 内置压盖周边地名接口，分组前缀与采集引擎的api_base约定一致
	apiRouter := r.Group(config.ApiBase)
	{
		apiRouter.POST("/overlap/check", overlapCtrl.CheckOverlap)
		apiRouter.GET("/nearby/parcels", overlapCtrl.NearbyParcels)
		apiRouter.GET("/geocode/search", geocodeCtrl.SearchPlace)
	}

	tileRouter := r.Group("/tile")
	{
		tileRouter.GET("/:z/:x/:y", tileCtrl.GetTile)
		tileRouter.GET("/ClearCache", tileCtrl.ClearTileCache)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
