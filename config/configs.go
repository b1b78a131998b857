package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// 10.0.4.10:8426 124.220.233.230:8426
var MainRouter string
var DSN string
var Dbtype string
var Dbname string
var Download string
var ApiBase string
var TileProvider string
var GeocodeURL string
var DeviceName string
var MainConfig Config

type Config struct {
	XMLName      xml.Name `xml:"config"`
	MainRouter   string   `xml:"MainRouter"`
	Dbtype       string   `xml:"dbtype"`
	Dbname       string   `xml:"dbname"`
	Host         string   `xml:"host"`
	Port         string   `xml:"port"`
	Username     string   `xml:"user"`
	Password     string   `xml:"password"`
	RootPath     string   `xml:"RootPath"`
	Download     string   `xml:"download"`
	ApiBase      string   `xml:"ApiBase"`
	TileProvider string   `xml:"TileProvider"`
	GeocodeURL   string   `xml:"GeocodeURL"`
	DeviceName   string   `xml:"DeviceName"`
	Capture      Capture  `xml:"capture"`
}

// Capture 采集控件的默认配置，前端start消息可逐项覆盖
type Capture struct {
	CaptureMode          string  `xml:"CaptureMode"` // BOTH WALK DRAW VIEW_ONLY
	DefaultMode          string  `xml:"DefaultMode"` // AUTO WALK DRAW
	DefaultLatitude      float64 `xml:"DefaultLatitude"`
	DefaultLongitude     float64 `xml:"DefaultLongitude"`
	DefaultZoom          int     `xml:"DefaultZoom"`
	ShowSatelliteOption  bool    `xml:"ShowSatelliteOption"`
	MapHeight            int     `xml:"MapHeight"`
	MinVertices          int     `xml:"MinVertices"`
	MaxVertices          int     `xml:"MaxVertices"`
	MinAreaHectares      float64 `xml:"MinAreaHectares"`
	MaxAreaHectares      float64 `xml:"MaxAreaHectares"`
	AllowSelfIntersect   bool    `xml:"AllowSelfIntersect"`
	GpsHighAccuracy      bool    `xml:"GpsHighAccuracy"`
	GpsMinAccuracy       float64 `xml:"GpsMinAccuracy"`
	GpsAutoCloseDistance float64 `xml:"GpsAutoCloseDistance"`
	FillColor            string  `xml:"FillColor"`
	FillOpacity          float64 `xml:"FillOpacity"`
	StrokeColor          string  `xml:"StrokeColor"`
	StrokeWidth          float64 `xml:"StrokeWidth"`
	Overlap              Overlap `xml:"overlap"`
	Nearby               Nearby  `xml:"nearby"`
	AutoCenter           Center  `xml:"autocenter"`
}

// Overlap 压盖检查配置，阈值为经验参数
type Overlap struct {
	Enabled              bool    `xml:"Enabled"`
	FormId               string  `xml:"FormId"`
	GeometryField        string  `xml:"GeometryField"`
	FilterCondition      string  `xml:"FilterCondition"`
	DisplayFields        string  `xml:"DisplayFields"`        // 逗号分隔
	MinOverlapPercent    float64 `xml:"MinOverlapPercent"`
	MaxResults           int     `xml:"MaxResults"`
	IncludeGeometry      bool    `xml:"IncludeGeometry"`
	SelfShrinkPercent    float64 `xml:"SelfShrinkPercent"`    // 默认95
	SelfUnchangedPercent float64 `xml:"SelfUnchangedPercent"` // 默认99
	SelfUnchangedAreaTol float64 `xml:"SelfUnchangedAreaTol"` // 默认0.02
	SelfExpandAreaTol    float64 `xml:"SelfExpandAreaTol"`    // 默认0.10
	SelfExpandBackupTol  float64 `xml:"SelfExpandBackupTol"`  // 默认0.05
}

type Nearby struct {
	Enabled      string `xml:"Enabled"` // DISABLED ON_LOAD ON_DEMAND
	MaxResults   int    `xml:"MaxResults"`
	ReturnFields string `xml:"ReturnFields"`
}

type Center struct {
	Enabled            bool   `xml:"Enabled"`
	DistrictFieldId    string `xml:"DistrictFieldId"`
	VillageFieldId     string `xml:"VillageFieldId"`
	LatFieldId         string `xml:"LatFieldId"`
	LonFieldId         string `xml:"LonFieldId"`
	RetryOnFieldChange bool   `xml:"RetryOnFieldChange"`
	Zoom               int    `xml:"Zoom"`
	CountrySuffix      string `xml:"CountrySuffix"`
}

func init() {

	xmlFile, err := os.Open("config.xml")
	if err != nil {
		fmt.Println("Error  opening  file:", err)
		applyDefaults()
		return
	}
	defer xmlFile.Close()

	xmlDecoder := xml.NewDecoder(xmlFile)
	err = xmlDecoder.Decode(&MainConfig)
	if err != nil {
		fmt.Println("Error  decoding  XML:", err)
		applyDefaults()
		return
	}
	applyDefaults()
}

// applyDefaults 填充未配置项的默认值并刷新包级变量
func applyDefaults() {
	if MainConfig.MainRouter == "" {
		MainConfig.MainRouter = "0.0.0.0:8426"
	}
	if MainConfig.Dbtype == "" {
		MainConfig.Dbtype = "sqlite"
	}
	if MainConfig.Download == "" {
		MainConfig.Download = "./Data"
	}
	c := &MainConfig.Capture
	if c.CaptureMode == "" {
		c.CaptureMode = "BOTH"
	}
	if c.DefaultMode == "" {
		c.DefaultMode = "AUTO"
	}
	if c.DefaultZoom == 0 {
		c.DefaultZoom = 16
	}
	if c.MinVertices == 0 {
		c.MinVertices = 3
	}
	if c.MaxVertices == 0 {
		c.MaxVertices = 500
	}
	if c.GpsMinAccuracy == 0 {
		c.GpsMinAccuracy = 20
	}
	if c.GpsAutoCloseDistance == 0 {
		c.GpsAutoCloseDistance = 15
	}
	if c.FillColor == "" {
		c.FillColor = "#3388ff"
	}
	if c.FillOpacity == 0 {
		c.FillOpacity = 0.2
	}
	if c.StrokeColor == "" {
		c.StrokeColor = "#3388ff"
	}
	if c.StrokeWidth == 0 {
		c.StrokeWidth = 2
	}
	o := &c.Overlap
	if o.MinOverlapPercent == 0 {
		o.MinOverlapPercent = 0.5
	}
	if o.MaxResults == 0 {
		o.MaxResults = 20
	}
	if o.SelfShrinkPercent == 0 {
		o.SelfShrinkPercent = 95
	}
	if o.SelfUnchangedPercent == 0 {
		o.SelfUnchangedPercent = 99
	}
	if o.SelfUnchangedAreaTol == 0 {
		o.SelfUnchangedAreaTol = 0.02
	}
	if o.SelfExpandAreaTol == 0 {
		o.SelfExpandAreaTol = 0.10
	}
	if o.SelfExpandBackupTol == 0 {
		o.SelfExpandBackupTol = 0.05
	}
	if c.Nearby.Enabled == "" {
		c.Nearby.Enabled = "DISABLED"
	}
	if c.Nearby.MaxResults == 0 {
		c.Nearby.MaxResults = 50
	}
	if c.AutoCenter.Zoom == 0 {
		c.AutoCenter.Zoom = 15
	}
	if MainConfig.ApiBase == "" {
		MainConfig.ApiBase = "/api"
	}
	if MainConfig.TileProvider == "" {
		MainConfig.TileProvider = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	}

	MainRouter = MainConfig.MainRouter
	Dbtype = MainConfig.Dbtype
	Dbname = MainConfig.Dbname
	Download = MainConfig.Download
	ApiBase = MainConfig.ApiBase
	TileProvider = MainConfig.TileProvider
	GeocodeURL = MainConfig.GeocodeURL
	DeviceName = MainConfig.DeviceName

	DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", MainConfig.Host, MainConfig.Username, MainConfig.Password, MainConfig.Dbname, MainConfig.Port)
}
