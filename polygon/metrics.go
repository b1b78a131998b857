package polygon

import (
	"fmt"
	"math"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Metrics 派生指标快照，整体替换，不做部分更新
type Metrics struct {
	AreaSquareMeters float64 `json:"area_m2"`
	AreaHectares     float64 `json:"area_ha"`
	PerimeterMeters  float64 `json:"perimeter_m"`
	Centroid         Vertex  `json:"centroid"`
	VertexCount      int     `json:"vertex_count"`
}

// Compute 从顶点环计算面积、周长、质心
// 顶点数不足3时返回nil；几何库异常被捕获后以错误返回，不向外传播
func Compute(r Ring) (m *Metrics, err error) {
	if len(r) < 3 {
		return nil, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = fmt.Errorf("几何计算失败: %v", rec)
		}
	}()

	poly := r.ToPolygon()
	area := math.Abs(geo.Area(poly))
	centroid, _ := planar.CentroidArea(poly)
	perimeter := ringLength(poly[0])

	return &Metrics{
		AreaSquareMeters: area,
		AreaHectares:     area / 10000,
		PerimeterMeters:  perimeter,
		Centroid:         Vertex{Lat: centroid[1], Lng: centroid[0]},
		VertexCount:      len(r),
	}, nil
}
