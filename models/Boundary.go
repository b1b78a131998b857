package models

import "gorm.io/datatypes"

// Boundary 已入库的地块边界，几何为闭合GeoJSON Polygon
type Boundary struct {
	BSM         string         `gorm:"type:varchar(255);primary_key"`
	FormId      string         `gorm:"type:varchar(255);index"`
	Name        string         `gorm:"type:varchar(255)"`
	Sname       string         `gorm:"type:varchar(255)"` // 名称拼音首字母简码
	XZQMC       string         `gorm:"type:varchar(255)"` // 行政区名称
	CMC         string         `gorm:"type:varchar(255)"` // 村名称
	MAC         string         `gorm:"type:varchar(255)"`
	Date        string         `gorm:"type:varchar(255)"`
	AreaHectare float64        // 面积(公顷) 保留4位
	Perimeter   float64        // 周长(米) 保留2位
	CentroidLat float64
	CentroidLng float64
	VertexCount int
	Geojson     datatypes.JSON `gorm:"type:jsonb"`        // 闭合Polygon
	Attributes  datatypes.JSON `gorm:"type:jsonb"`        // 展示字段与输出字段
}
