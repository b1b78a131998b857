package polygon

import (
	"math"

	"github.com/paulmach/orb"
)

// lineSeg 线段的一般式系数 A*x + B*y = C
type lineSeg struct {
	a, b, c float64
	p1, p2  orb.Point
}

func newLineSeg(p1, p2 orb.Point) lineSeg {
	a := p2[1] - p1[1]
	b := p1[0] - p2[0]
	c := a*p1[0] + b*p1[1]
	return lineSeg{a: a, b: b, c: c, p1: p1, p2: p2}
}

// hasPoint 判断点是否落在线段包围范围内（含容差）
func (l lineSeg) hasPoint(p orb.Point) bool {
	const eps = 1e-12
	return math.Min(l.p1[0], l.p2[0])-eps <= p[0] && p[0] <= math.Max(l.p1[0], l.p2[0])+eps &&
		math.Min(l.p1[1], l.p2[1])-eps <= p[1] && p[1] <= math.Max(l.p1[1], l.p2[1])+eps
}

// segIntersect 求两线段交点，平行或共线视为不相交
func segIntersect(s1, s2 lineSeg) (orb.Point, bool) {
	det := s1.a*s2.b - s2.a*s1.b
	if math.Abs(det) < 1e-18 {
		return orb.Point{}, false
	}
	x := (s2.b*s1.c - s1.b*s2.c) / det
	y := (s1.a*s2.c - s2.a*s1.c) / det
	p := orb.Point{x, y}
	if s1.hasPoint(p) && s2.hasPoint(p) {
		return p, true
	}
	return orb.Point{}, false
}

// adjacentEdges 闭合环上两条边是否相邻（含首尾边）
func adjacentEdges(i, j, n int) bool {
	if i > j {
		i, j = j, i
	}
	return j-i == 1 || (i == 0 && j == n-1)
}

// FindKinks 主检测：遍历所有非相邻边求自交点
func FindKinks(r Ring) []Vertex {
	n := len(r)
	if n < 3 {
		return nil
	}
	closed := r.ToOrb()
	var kinks []Vertex
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if adjacentEdges(i, j, n) {
				continue
			}
			s1 := newLineSeg(closed[i], closed[i+1])
			s2 := newLineSeg(closed[j], closed[j+1])
			if p, ok := segIntersect(s1, s2); ok {
				kinks = append(kinks, Vertex{Lat: p[1], Lng: p[0]})
			}
		}
	}
	return kinks
}
