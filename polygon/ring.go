package polygon

import (
	"github.com/paulmach/orb"
)

// Vertex 顶点，环内顺序有意义，首点不在尾部重复
type Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring 未闭合顶点环，闭合点仅在导出时追加
type Ring []Vertex

func (r Ring) Clone() Ring {
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// ToOrb 转为闭合的orb.Ring（尾部追加首点）
func (r Ring) ToOrb() orb.Ring {
	ring := make(orb.Ring, 0, len(r)+1)
	for _, v := range r {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(r) > 0 {
		ring = append(ring, orb.Point{r[0].Lng, r[0].Lat})
	}
	return ring
}

func (r Ring) ToPolygon() orb.Polygon {
	return orb.Polygon{r.ToOrb()}
}

// FromOrbRing 去除闭合点还原顶点环
func FromOrbRing(ring orb.Ring) Ring {
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	out := make(Ring, 0, len(ring))
	for _, p := range ring {
		out = append(out, Vertex{Lat: p[1], Lng: p[0]})
	}
	return out
}

// Bound 顶点环包围盒
func (r Ring) Bound() orb.Bound {
	return r.ToOrb().Bound()
}
