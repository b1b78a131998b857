package polygon

import (
	"math"

	"github.com/paulmach/orb"
)

// HaversineDistance 计算两点之间的距离（米）
func HaversineDistance(p1, p2 orb.Point) float64 {
	const earthRadius = 6371000 // 地球半径（米）

	lat1 := p1[1] * math.Pi / 180
	lat2 := p2[1] * math.Pi / 180
	deltaLat := (p2[1] - p1[1]) * math.Pi / 180
	deltaLon := (p2[0] - p1[0]) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// VertexDistance 两个顶点间的球面距离（米）
func VertexDistance(v1, v2 Vertex) float64 {
	return HaversineDistance(orb.Point{v1.Lng, v1.Lat}, orb.Point{v2.Lng, v2.Lat})
}

// ringLength 闭合环总边长（米）
func ringLength(ring orb.Ring) float64 {
	length := 0.0
	for i := 0; i < len(ring)-1; i++ {
		length += HaversineDistance(ring[i], ring[i+1])
	}
	return length
}
