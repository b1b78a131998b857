package polygon

import (
	"math"
	"sort"
)

// sweepSeg 扫描线段，按最小x排序入场
type sweepSeg struct {
	idx        int
	s          lineSeg
	minX, maxX float64
}

// FindKinksSweep 兜底检测：x方向扫描线，仅对扫描区间重叠的边做求交
func FindKinksSweep(r Ring) []Vertex {
	n := len(r)
	if n < 3 {
		return nil
	}
	closed := r.ToOrb()
	segs := make([]sweepSeg, 0, n)
	for i := 0; i < n; i++ {
		s := newLineSeg(closed[i], closed[i+1])
		segs = append(segs, sweepSeg{
			idx:  i,
			s:    s,
			minX: math.Min(s.p1[0], s.p2[0]),
			maxX: math.Max(s.p1[0], s.p2[0]),
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX < segs[j].minX })

	active := make([]sweepSeg, 0, n)
	var kinks []Vertex
	for _, cur := range segs {
		// 剔除扫描线左侧已结束的线段
		kept := active[:0]
		for _, a := range active {
			if a.maxX >= cur.minX {
				kept = append(kept, a)
			}
		}
		active = kept
		for _, a := range active {
			if adjacentEdges(a.idx, cur.idx, n) {
				continue
			}
			if p, ok := segIntersect(a.s, cur.s); ok {
				kinks = append(kinks, Vertex{Lat: p[1], Lng: p[0]})
			}
		}
		active = append(active, cur)
	}
	return kinks
}
