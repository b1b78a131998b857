package polygon

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ExportGeometry 导出闭合Polygon的GeoJSON字节
func (r Ring) ExportGeometry() ([]byte, error) {
	if len(r) < 3 {
		return nil, fmt.Errorf("顶点数不足，无法构成多边形: %d", len(r))
	}
	g := geojson.NewGeometry(r.ToPolygon())
	return json.Marshal(g)
}

// ImportGeometry 解析GeoJSON Polygon并去除闭合点
func ImportGeometry(data []byte) (Ring, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("解析GeoJSON失败: %v", err)
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("几何类型不是Polygon: %s", g.Type)
	}
	if len(poly) == 0 || len(poly[0]) == 0 {
		return nil, fmt.Errorf("多边形为空")
	}
	return FromOrbRing(poly[0]), nil
}

// ContainsRing 判断环的所有顶点是否都落在多边形内
func ContainsRing(outer orb.Polygon, r Ring) bool {
	for _, v := range r {
		if !planar.PolygonContains(outer, orb.Point{v.Lng, v.Lat}) {
			return false
		}
	}
	return true
}
