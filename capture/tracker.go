package capture

import (
	"github.com/GrainArc/LandCollect/polygon"
)

// 定位精度分级
const (
	AccuracyExcellent = "EXCELLENT"
	AccuracyGood      = "GOOD"
	AccuracyFair      = "FAIR"
	AccuracyPoor      = "POOR"
	AccuracyVeryPoor  = "VERY_POOR"
)

// AccuracySample 打点时刻的定位精度记录
type AccuracySample struct {
	VertexIndex int     `json:"vertex_index"`
	Accuracy    float64 `json:"accuracy"`
}

// GpsStatus 定位更新后推送给宿主的状态
type GpsStatus struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	Level    string  `json:"level"`
	CanMark  bool    `json:"can_mark"`
}

// ClassifyAccuracy 按精度半径米数分为五级
func ClassifyAccuracy(radius float64) string {
	switch {
	case radius <= 3:
		return AccuracyExcellent
	case radius <= 5:
		return AccuracyGood
	case radius <= 10:
		return AccuracyFair
	case radius <= 20:
		return AccuracyPoor
	default:
		return AccuracyVeryPoor
	}
}

// UpdatePosition 定位流的每次更新入口
// 记录当前位置与精度，评估打点可用性，并做闭合提示检查
func (s *Session) UpdatePosition(lat, lng, accuracy float64) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.currentPos = &polygon.Vertex{Lat: lat, Lng: lng}
	s.gpsAccuracy = accuracy
	status := GpsStatus{
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
		Level:    ClassifyAccuracy(accuracy),
		CanMark:  s.canMarkLocked(accuracy),
	}
	hint, dist := s.autoCloseLocked(lat, lng)
	s.mu.Unlock()

	if s.cb.OnGps != nil {
		s.cb.OnGps(status)
	}
	if hint && s.cb.OnCloseHint != nil {
		s.cb.OnCloseHint(dist)
	}
}

// MarkCorner 徒步模式下在当前定位处打一个拐点
func (s *Session) MarkCorner() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.mode != ModeWalk || s.phase != PhaseDrawing {
		s.mu.Unlock()
		return ErrPhase
	}
	if s.currentPos == nil {
		s.mu.Unlock()
		return ErrNoPosition
	}
	if min := s.opts.Gps.MinAccuracy; min > 0 && s.gpsAccuracy > min {
		s.mu.Unlock()
		return ErrAccuracyLow
	}
	pos := *s.currentPos
	acc := s.gpsAccuracy
	s.mu.Unlock()

	if err := s.AddVertex(pos.Lat, pos.Lng); err != nil {
		return err
	}
	s.mu.Lock()
	s.samples = append(s.samples, AccuracySample{VertexIndex: len(s.vertices) - 1, Accuracy: acc})
	s.mu.Unlock()
	return nil
}

// AccuracySamples 各拐点的精度记录副本
func (s *Session) AccuracySamples() []AccuracySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AccuracySample(nil), s.samples...)
}

func (s *Session) canMarkLocked(accuracy float64) bool {
	if s.mode != ModeWalk || s.phase != PhaseDrawing {
		return false
	}
	if min := s.opts.Gps.MinAccuracy; min > 0 && accuracy > min {
		return false
	}
	return len(s.vertices) < s.maxVertices()
}

// autoCloseLocked 起点闭合提示
// 已有3个以上拐点时计算当前位置与起点的大圆距离，
// 进入阈值圈提示一次，离开后复位，再次接近可重新提示
func (s *Session) autoCloseLocked(lat, lng float64) (bool, float64) {
	if s.mode != ModeWalk || s.phase != PhaseDrawing || len(s.vertices) < 3 {
		return false, 0
	}
	threshold := s.opts.Gps.AutoCloseDistance
	if threshold <= 0 {
		threshold = 15
	}
	first := s.vertices[0]
	dist := polygon.VertexDistance(first, polygon.Vertex{Lat: lat, Lng: lng})
	if dist <= threshold {
		if !s.closeHinted {
			s.closeHinted = true
			return true, dist
		}
		return false, dist
	}
	s.closeHinted = false
	return false, 0
}
