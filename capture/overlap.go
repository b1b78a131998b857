package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/GrainArc/LandCollect/polygon"
)

// OverlapChecker 压盖检查服务
type OverlapChecker interface {
	CheckOverlap(ctx context.Context, req OverlapRequest) (*OverlapResult, error)
}

// NearbyFetcher 周边地块查询服务
type NearbyFetcher interface {
	FetchNearby(ctx context.Context, req NearbyRequest) ([]byte, error)
}

// Geocoder 行政区名称转坐标，自动定心回退链使用
type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lng float64, err error)
}

type OverlapTarget struct {
	FormId          string `json:"formId"`
	GeometryFieldId string `json:"geometryFieldId"`
	FilterCondition string `json:"filterCondition,omitempty"`
	ExcludeRecordId string `json:"excludeRecordId,omitempty"`
}

type OverlapQueryOptions struct {
	ReturnFields           []string `json:"returnFields"`
	MinOverlapPercent      float64  `json:"minOverlapPercent"`
	MaxResults             int      `json:"maxResults"`
	IncludeOverlapGeometry bool     `json:"includeOverlapGeometry"`
}

type OverlapRequest struct {
	Geometry json.RawMessage     `json:"geometry"`
	Target   OverlapTarget       `json:"target"`
	Options  OverlapQueryOptions `json:"options"`
}

type OverlapRecord struct {
	RecordId              string            `json:"recordId"`
	OverlapGeometry       json.RawMessage   `json:"overlapGeometry,omitempty"`
	RecordData            map[string]string `json:"recordData,omitempty"`
	OverlapAreaHectares   float64           `json:"overlapAreaHectares"`
	OverlapPercentOfInput float64           `json:"overlapPercentOfInput"`
}

type OverlapResult struct {
	HasOverlaps bool            `json:"hasOverlaps"`
	Overlaps    []OverlapRecord `json:"overlaps"`
}

type NearbyRequest struct {
	FormId          string
	GeometryFieldId string
	Bounds          string
	FilterCondition string
	ReturnFields    string
	MaxResults      int
	ExcludeRecordId string
}

// FormatBounds 视窗范围序列化为 west,south,east,north 六位小数
func FormatBounds(west, south, east, north float64) string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", west, south, east, north)
}

// CheckOverlap 立即发起一次压盖检查
func (s *Session) CheckOverlap() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.checkOverlapLocked()
	s.mu.Unlock()
}

// CheckOverlapDebounced 去抖发起压盖检查，吸收连续编辑的触发
func (s *Session) CheckOverlapDebounced() {
	s.overlapDebounce.Trigger(s.CheckOverlap)
}

func (s *Session) scheduleOverlapLocked() {
	s.overlapDebounce.Trigger(s.CheckOverlap)
}

// checkOverlapLocked 发起压盖检查，后发请求作废先发请求
// 代际号在发起时递增并被闭包捕获，完成回调只在代际仍匹配时落盘，
// 防止已取消请求的完成结果抢在取消信号前到达
func (s *Session) checkOverlapLocked() {
	if !s.opts.Overlap.Enabled || s.deps.Overlap == nil {
		return
	}
	if len(s.vertices) < 3 {
		return
	}
	geom, err := s.vertices.ExportGeometry()
	if err != nil {
		return
	}

	s.overlapGen++
	gen := s.overlapGen
	if s.overlapCancel != nil {
		s.overlapCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	s.overlapCancel = cancel
	s.overlapPending = true

	req := OverlapRequest{
		Geometry: geom,
		Target: OverlapTarget{
			FormId:          s.opts.Overlap.FormId,
			GeometryFieldId: s.opts.Overlap.GeometryField,
			FilterCondition: s.opts.Overlap.FilterCondition,
			ExcludeRecordId: s.opts.RecordId,
		},
		Options: OverlapQueryOptions{
			ReturnFields:           s.opts.Overlap.DisplayFields,
			MinOverlapPercent:      s.opts.Overlap.MinOverlapPercent,
			MaxResults:             s.opts.Overlap.MaxResults,
			IncludeOverlapGeometry: s.opts.Overlap.IncludeGeometry,
		},
	}

	go func() {
		result, err := s.deps.Overlap.CheckOverlap(ctx, req)
		cancel()

		s.mu.Lock()
		if s.destroyed || gen != s.overlapGen {
			s.mu.Unlock()
			return
		}
		s.overlapPending = false
		s.overlapCancel = nil
		if err != nil {
			// 超时按取消静默处理，真实错误放行采集流程并告警
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				snap := s.snapshotLocked()
				s.mu.Unlock()
				s.emitState(snap)
				return
			}
			s.overlaps = nil
			s.overlapChecked = false
			snap := s.snapshotLocked()
			s.mu.Unlock()
			s.emitError("压盖检查失败: " + err.Error())
			s.emitState(snap)
			return
		}
		var records []OverlapRecord
		if result != nil {
			records = result.Overlaps
		}
		records = s.filterSelfOverlapsLocked(records)
		s.overlaps = records
		s.overlapChecked = true
		s.overlapConfirmed = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if s.cb.OnOverlaps != nil {
			s.cb.OnOverlaps(records, false)
		}
		s.emitState(snap)
	}()
}

// Overlaps 最近一次压盖检查的结果副本
func (s *Session) Overlaps() []OverlapRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OverlapRecord(nil), s.overlaps...)
}

type selfFilterThresholds struct {
	shrinkPercent    float64
	unchangedPercent float64
	unchangedAreaTol float64
	expandAreaTol    float64
	expandBackupTol  float64
}

func (o OverlapOptions) thresholds() selfFilterThresholds {
	th := selfFilterThresholds{
		shrinkPercent:    o.SelfShrinkPercent,
		unchangedPercent: o.SelfUnchangedPercent,
		unchangedAreaTol: o.SelfUnchangedAreaTol,
		expandAreaTol:    o.SelfExpandAreaTol,
		expandBackupTol:  o.SelfExpandBackupTol,
	}
	if th.shrinkPercent <= 0 {
		th.shrinkPercent = 95
	}
	if th.unchangedPercent <= 0 {
		th.unchangedPercent = 99
	}
	if th.unchangedAreaTol <= 0 {
		th.unchangedAreaTol = 0.02
	}
	if th.expandAreaTol <= 0 {
		th.expandAreaTol = 0.10
	}
	if th.expandBackupTol <= 0 {
		th.expandBackupTol = 0.05
	}
	return th
}

// filterSelfOverlapsLocked 编辑既有记录时剔除与自身旧几何的假性压盖
// 仅当基线几何与当前指标都存在时生效，逐候选匹配，命中任一规则即剔除
func (s *Session) filterSelfOverlapsLocked(records []OverlapRecord) []OverlapRecord {
	if s.initialRing == nil || s.metrics == nil || len(records) == 0 {
		return records
	}
	cur := s.metrics.AreaHectares
	base := s.initialArea
	th := s.opts.Overlap.thresholds()
	kept := make([]OverlapRecord, 0, len(records))
	for _, rec := range records {
		if s.isSelfOverlapLocked(rec, cur, base, th) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func (s *Session) isSelfOverlapLocked(rec OverlapRecord, cur, base float64, th selfFilterThresholds) bool {
	// 规则一 缩小：新图形比基线小且压盖占比极高
	if base > cur && rec.OverlapPercentOfInput >= th.shrinkPercent {
		return true
	}
	// 规则二 未变：占比接近全覆盖且压盖面积与当前面积几乎一致
	if rec.OverlapPercentOfInput >= th.unchangedPercent &&
		math.Abs(rec.OverlapAreaHectares-cur) <= th.unchangedAreaTol*cur {
		return true
	}
	// 规则三 扩大：新图形比基线大且空间上包含基线图形
	if cur > base {
		contained, ok := containsBaseline(s.vertices, s.initialRing)
		if !ok {
			// 包含判断自身失败时退化为纯面积比较
			return math.Abs(rec.OverlapAreaHectares-base) <= th.expandBackupTol*base
		}
		if contained && math.Abs(rec.OverlapAreaHectares-base) <= th.expandAreaTol*base {
			return true
		}
	}
	return false
}

func containsBaseline(current, initial polygon.Ring) (contained bool, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			contained = false
			ok = false
		}
	}()
	return polygon.ContainsRing(current.ToPolygon(), initial), true
}

// FetchNearby 查询周边地块，bounds为空时按当前图形或默认中心推算范围
// 与压盖检查同样走后发作废先发的代际机制
func (s *Session) FetchNearby(bounds string) {
	s.mu.Lock()
	if s.destroyed || s.deps.Nearby == nil {
		s.mu.Unlock()
		return
	}
	mode := s.opts.NearbyParcels.Enabled
	if mode != "ON_LOAD" && mode != "ON_DEMAND" {
		s.mu.Unlock()
		return
	}
	if bounds == "" {
		bounds = s.deriveBoundsLocked()
	}
	s.nearbyGen++
	gen := s.nearbyGen
	if s.nearbyCancel != nil {
		s.nearbyCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	s.nearbyCancel = cancel
	req := NearbyRequest{
		FormId:          s.opts.Overlap.FormId,
		GeometryFieldId: s.opts.Overlap.GeometryField,
		Bounds:          bounds,
		FilterCondition: s.opts.Overlap.FilterCondition,
		ReturnFields:    strings.Join(s.opts.NearbyParcels.ReturnFields, ","),
		MaxResults:      s.opts.NearbyParcels.MaxResults,
		ExcludeRecordId: s.opts.RecordId,
	}
	s.mu.Unlock()

	go func() {
		features, err := s.deps.Nearby.FetchNearby(ctx, req)
		cancel()

		s.mu.Lock()
		if s.destroyed || gen != s.nearbyGen {
			s.mu.Unlock()
			return
		}
		s.nearbyCancel = nil
		s.mu.Unlock()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.emitError("周边地块查询失败: " + err.Error())
			return
		}
		if s.cb.OnNearby != nil {
			s.cb.OnNearby(features)
		}
	}()
}

func (s *Session) deriveBoundsLocked() string {
	if len(s.vertices) >= 3 {
		b := s.vertices.Bound()
		return FormatBounds(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}
	const margin = 0.01
	lat := s.opts.DefaultLatitude
	lng := s.opts.DefaultLongitude
	return FormatBounds(lng-margin, lat-margin, lng+margin, lat+margin)
}
