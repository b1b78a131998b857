package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/GrainArc/LandCollect/polygon"
	"github.com/google/uuid"
)

const (
	validateDebounceDelay = 150 * time.Millisecond
	dragThrottleInterval  = 16 * time.Millisecond // 约60次/秒
	dragDebounceDelay     = 100 * time.Millisecond
	overlapDebounceDelay  = 300 * time.Millisecond
	centerDebounceDelay   = 300 * time.Millisecond
	centerPollInterval    = 3 * time.Second
	requestTimeout        = 30 * time.Second
)

// Deps 会话依赖的外部协作方，构造时注入，可为空
type Deps struct {
	Overlap   OverlapChecker
	Nearby    NearbyFetcher
	Geocoder  Geocoder
	Validator *polygon.Validator // 为空时使用默认双算法检测
}

// Callbacks 宿主回调，由传输层绑定，全部可空
type Callbacks struct {
	OnGeometryChange  func(geometry []byte, metrics *polygon.Metrics)
	OnValidationError func(errs []string)
	OnError           func(msg string)
	OnState           func(snap StateSnapshot)
	OnOverlaps        func(records []OverlapRecord, pending bool)
	OnCenter          func(lat, lng float64, zoom int)
	OnCloseHint       func(distance float64)
	OnGps             func(status GpsStatus)
	OnNearby          func(features []byte)
	OnLimit           func(msg string)
}

// StateSnapshot 会话状态快照，回调与推送都只携带副本
type StateSnapshot struct {
	Phase            string           `json:"phase"`
	Mode             string           `json:"mode,omitempty"`
	Vertices         polygon.Ring     `json:"vertices"`
	Metrics          *polygon.Metrics `json:"metrics,omitempty"`
	SelectedVertex   int              `json:"selected_vertex"`
	Intersections    []polygon.Vertex `json:"intersections,omitempty"`
	OverlapChecked   bool             `json:"overlap_checked"`
	OverlapConfirmed bool             `json:"overlap_confirmed"`
	OverlapPending   bool             `json:"overlap_pending"`
}

// Session 采集会话，持有顶点环与全部派生状态
// 修改操作经互斥锁串行化，异步完成回调通过代际标记丢弃过期结果
type Session struct {
	mu   sync.Mutex
	ID   string
	opts Options

	mode  string
	phase string

	vertices       polygon.Ring
	metrics        *polygon.Metrics
	selectedVertex int
	intersections  []polygon.Vertex

	overlaps         []OverlapRecord
	overlapChecked   bool
	overlapConfirmed bool
	overlapPending   bool

	initialRing polygon.Ring
	initialArea float64

	currentPos  *polygon.Vertex
	gpsAccuracy float64
	samples     []AccuracySample
	closeHinted bool

	editCycle bool
	destroyed bool

	overlapGen    uint64
	overlapCancel context.CancelFunc
	nearbyGen     uint64
	nearbyCancel  context.CancelFunc

	validateDebounce *Debouncer
	overlapDebounce  *Debouncer
	dragThrottle     *Throttler
	dragDebounce     *Debouncer

	center *autoCenter

	validator *polygon.Validator
	deps      Deps
	cb        Callbacks
}

func NewSession(opts Options, deps Deps, cb Callbacks) *Session {
	v := deps.Validator
	if v == nil {
		v = polygon.NewValidator(polygon.WithSweepBackstop())
	}
	s := &Session{
		ID:               uuid.New().String(),
		opts:             opts,
		phase:            PhaseEmpty,
		selectedVertex:   -1,
		validateDebounce: NewDebouncer(validateDebounceDelay),
		overlapDebounce:  NewDebouncer(overlapDebounceDelay),
		dragThrottle:     NewThrottler(dragThrottleInterval),
		dragDebounce:     NewDebouncer(dragDebounceDelay),
		validator:        v,
		deps:             deps,
		cb:               cb,
	}
	if opts.AutoCenter.Enabled {
		s.center = newAutoCenter(s)
	}
	return s
}

// Begin 按配置与UA决定初始阶段
// VIEW_ONLY直接进入VIEW；固定方式直接进入DRAWING；
// BOTH且默认AUTO时移动端进入SELECT等待选择，桌面端默认DRAW
func (s *Session) Begin(userAgent string) StateSnapshot {
	s.mu.Lock()
	switch s.opts.CaptureMode {
	case "VIEW_ONLY":
		s.phase = PhaseView
	case "WALK":
		s.mode = ModeWalk
		s.phase = PhaseDrawing
	case "DRAW":
		s.mode = ModeDraw
		s.phase = PhaseDrawing
	default: // BOTH
		switch s.opts.DefaultMode {
		case "WALK":
			s.mode = ModeWalk
			s.phase = PhaseDrawing
		case "DRAW":
			s.mode = ModeDraw
			s.phase = PhaseDrawing
		default: // AUTO
			if IsMobileUA(userAgent) {
				s.phase = PhaseSelect
			} else {
				s.mode = ModeDraw
				s.phase = PhaseDrawing
			}
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.center != nil {
		s.center.start()
	}
	if s.opts.NearbyParcels.Enabled == "ON_LOAD" {
		s.FetchNearby("")
	}
	return snap
}

// ChooseMode 在SELECT或EMPTY阶段选定采集方式并进入DRAWING
func (s *Session) ChooseMode(mode string) error {
	if mode != ModeWalk && mode != ModeDraw {
		return ErrBadMode
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseSelect && s.phase != PhaseEmpty {
		s.mu.Unlock()
		return ErrPhase
	}
	s.mode = mode
	s.phase = PhaseDrawing
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitState(snap)
	return nil
}

// LoadInitial 以既有记录的几何预置顶点环并记录基线，进入PREVIEW
// 基线只在首次载入时写入，此后不变
func (s *Session) LoadInitial(geometry []byte, storedAreaHa float64) error {
	ring, err := polygon.ImportGeometry(geometry)
	if err != nil {
		return err
	}
	if len(ring) < 3 {
		return ErrTooFewVertices
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.initialRing != nil {
		s.mu.Unlock()
		return fmt.Errorf("基线几何已载入")
	}
	s.vertices = ring
	s.selectedVertex = -1
	s.recomputeLocked()
	s.initialRing = ring.Clone()
	if storedAreaHa > 0 {
		s.initialArea = storedAreaHa
	} else if s.metrics != nil {
		s.initialArea = s.metrics.AreaHectares
	}
	if s.phase != PhaseView {
		s.phase = PhasePreview
		s.checkOverlapLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitState(snap)
	s.emitGeometry(snap)
	return nil
}

// AddVertex 追加顶点，仅DRAWING阶段有效
// 达到上限时拒绝且不产生任何变更
func (s *Session) AddVertex(lat, lng float64) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing {
		s.mu.Unlock()
		return ErrPhase
	}
	if len(s.vertices) >= s.maxVertices() {
		s.mu.Unlock()
		s.emitLimit(fmt.Sprintf("顶点数已达上限%d个", s.maxVertices()))
		return ErrVertexLimit
	}
	s.vertices = append(s.vertices, polygon.Vertex{Lat: lat, Lng: lng})
	s.recomputeLocked()
	// 编辑周期内的增点触发去抖压盖复查
	if s.editCycle {
		s.scheduleOverlapLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
	return nil
}

// UndoLastVertex 撤销最后一个顶点，非DRAWING或环为空时为空操作
func (s *Session) UndoLastVertex() {
	s.mu.Lock()
	if s.destroyed || s.phase != PhaseDrawing || len(s.vertices) == 0 {
		s.mu.Unlock()
		return
	}
	s.vertices = s.vertices[:len(s.vertices)-1]
	s.selectedVertex = -1
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
}

// DeleteVertex 删除指定顶点，删除后不足3个时拒绝
func (s *Session) DeleteVertex(index int) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing && s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	if index < 0 || index >= len(s.vertices) {
		s.mu.Unlock()
		return ErrIndex
	}
	if len(s.vertices)-1 < 3 {
		s.mu.Unlock()
		return ErrRingMinimum
	}
	s.vertices = append(s.vertices[:index], s.vertices[index+1:]...)
	s.selectedVertex = -1
	s.recomputeLocked()
	if s.phase == PhasePreview {
		s.checkOverlapLocked()
	}
	snap := s.snapshotLocked()
	errs := s.buildValidationErrorsLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
	s.emitValidation(errs)
	return nil
}

// InsertVertexOnEdge 在指定边之后插入顶点，用于边中点拖出新顶点
func (s *Session) InsertVertexOnEdge(edge int, lat, lng float64) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing && s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	if edge < 0 || edge >= len(s.vertices) {
		s.mu.Unlock()
		return ErrIndex
	}
	if len(s.vertices) >= s.maxVertices() {
		s.mu.Unlock()
		s.emitLimit(fmt.Sprintf("顶点数已达上限%d个", s.maxVertices()))
		return ErrVertexLimit
	}
	v := polygon.Vertex{Lat: lat, Lng: lng}
	s.vertices = append(s.vertices[:edge+1], append(polygon.Ring{v}, s.vertices[edge+1:]...)...)
	s.selectedVertex = -1
	s.recomputeLocked()
	if s.phase == PhasePreview {
		s.checkOverlapLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
	return nil
}

// MoveVertex 拖拽中的顶点重定位
// 轮廓推送节流约60次/秒，指标重算与自交检测分别去抖
func (s *Session) MoveVertex(index int, lat, lng float64) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing && s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	if index < 0 || index >= len(s.vertices) {
		s.mu.Unlock()
		return ErrIndex
	}
	s.vertices[index] = polygon.Vertex{Lat: lat, Lng: lng}
	s.selectedVertex = index
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.dragThrottle.Run(func() {
		s.emitState(snap)
	})
	s.dragDebounce.Trigger(func() {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return
		}
		s.metrics = s.computeMetricsLocked()
		quiet := s.snapshotLocked()
		s.mu.Unlock()
		s.emitGeometry(quiet)
	})
	s.validateDebounce.Trigger(func() {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return
		}
		_, pts := s.validator.Check(s.vertices)
		s.intersections = pts
		quiet := s.snapshotLocked()
		s.mu.Unlock()
		s.emitState(quiet)
	})
	return nil
}

// EndMove 拖拽结束：取消节流与去抖任务，用最终位置强制同步重算
func (s *Session) EndMove(index int, lat, lng float64) error {
	s.dragThrottle.Reset()
	s.dragDebounce.Cancel()
	s.validateDebounce.Cancel()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing && s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	if index < 0 || index >= len(s.vertices) {
		s.mu.Unlock()
		return ErrIndex
	}
	s.vertices[index] = polygon.Vertex{Lat: lat, Lng: lng}
	s.recomputeLocked()
	if s.phase == PhasePreview {
		s.checkOverlapLocked()
	}
	snap := s.snapshotLocked()
	errs := s.buildValidationErrorsLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
	s.emitValidation(errs)
	return nil
}

// CompletePolygon 闭合多边形，DRAWING转PREVIEW并立即检查压盖
func (s *Session) CompletePolygon() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhaseDrawing {
		s.mu.Unlock()
		return ErrPhase
	}
	if len(s.vertices) < 3 {
		s.mu.Unlock()
		return ErrTooFewVertices
	}
	s.phase = PhasePreview
	s.recomputeLocked()
	s.checkOverlapLocked()
	snap := s.snapshotLocked()
	errs := s.buildValidationErrorsLocked()
	s.mu.Unlock()
	s.emitGeometry(snap)
	s.emitState(snap)
	s.emitValidation(errs)
	return nil
}

// EnterEditMode PREVIEW转DRAWING，清除待复查的压盖展示
func (s *Session) EnterEditMode() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	s.phase = PhaseDrawing
	s.overlaps = nil
	s.overlapChecked = false
	s.overlapConfirmed = false
	s.editCycle = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitState(snap)
	return nil
}

// ConfirmOverlap 用户确认压盖后仍保存，几何不变
func (s *Session) ConfirmOverlap() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	if s.phase != PhasePreview {
		s.mu.Unlock()
		return ErrPhase
	}
	s.overlapConfirmed = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitState(snap)
	return nil
}

// Clear 清空顶点环与全部派生状态，回到EMPTY
func (s *Session) Clear() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.cancelRequestsLocked()
	s.vertices = nil
	s.metrics = nil
	s.intersections = nil
	s.selectedVertex = -1
	s.overlaps = nil
	s.overlapChecked = false
	s.overlapConfirmed = false
	s.overlapPending = false
	s.closeHinted = false
	s.editCycle = false
	s.phase = PhaseEmpty
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.validateDebounce.Cancel()
	s.overlapDebounce.Cancel()
	s.dragDebounce.Cancel()
	s.emitState(snap)
	s.emitGeometry(snap)
}

// SaveSnapshot 校验可保存性并返回待持久化数据
// 存在未确认压盖时拒绝；校验警告不拦截保存
func (s *Session) SaveSnapshot() (geometry []byte, m *polygon.Metrics, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, nil, ErrDestroyed
	}
	if s.phase != PhasePreview {
		return nil, nil, ErrPhase
	}
	if len(s.overlaps) > 0 && !s.overlapConfirmed {
		return nil, nil, ErrUnconfirmed
	}
	geometry, err = s.vertices.ExportGeometry()
	if err != nil {
		return nil, nil, err
	}
	return geometry, s.metrics, nil
}

// MarkSaved 持久化完成后进入SAVED
func (s *Session) MarkSaved() {
	s.mu.Lock()
	if s.destroyed || s.phase != PhasePreview {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseSaved
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emitState(snap)
}

// Destroy 按序终止：取消在途请求与计时任务，停止定位与自动定心，置销毁标记
// 销毁后到达的任何回调不再改动状态，可重复调用
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.cancelRequestsLocked()
	s.destroyed = true
	s.mu.Unlock()

	s.validateDebounce.Cancel()
	s.overlapDebounce.Cancel()
	s.dragDebounce.Cancel()
	if s.center != nil {
		s.center.stop()
	}
}

// Snapshot 当前状态快照
func (s *Session) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Options 会话配置副本
func (s *Session) Options() Options {
	return s.opts
}

func (s *Session) cancelRequestsLocked() {
	s.overlapGen++
	if s.overlapCancel != nil {
		s.overlapCancel()
		s.overlapCancel = nil
	}
	s.nearbyGen++
	if s.nearbyCancel != nil {
		s.nearbyCancel()
		s.nearbyCancel = nil
	}
	s.overlapPending = false
}

func (s *Session) maxVertices() int {
	if s.opts.Validation.MaxVertices > 0 {
		return s.opts.Validation.MaxVertices
	}
	return 500
}

func (s *Session) minVertices() int {
	if s.opts.Validation.MinVertices > 3 {
		return s.opts.Validation.MinVertices
	}
	return 3
}

// recomputeLocked 终端操作后的同步重算：指标与自交检测一起刷新
func (s *Session) recomputeLocked() {
	s.metrics = s.computeMetricsLocked()
	_, pts := s.validator.Check(s.vertices)
	s.intersections = pts
}

func (s *Session) computeMetricsLocked() *polygon.Metrics {
	m, err := polygon.Compute(s.vertices)
	if err != nil {
		log.Printf("指标计算失败: %v", err)
		return nil
	}
	return m
}

func (s *Session) buildValidationErrorsLocked() []string {
	var errs []string
	if len(s.vertices) < s.minVertices() {
		errs = append(errs, fmt.Sprintf("顶点数不足%d个", s.minVertices()))
	}
	if !s.opts.Validation.AllowSelfIntersection && len(s.intersections) > 0 {
		errs = append(errs, "边界存在自相交")
	}
	if s.metrics != nil {
		if v := s.opts.Validation.MinAreaHectares; v > 0 && s.metrics.AreaHectares < v {
			errs = append(errs, fmt.Sprintf("面积小于下限%.4f公顷", v))
		}
		if v := s.opts.Validation.MaxAreaHectares; v > 0 && s.metrics.AreaHectares > v {
			errs = append(errs, fmt.Sprintf("面积超过上限%.4f公顷", v))
		}
	}
	return errs
}

func (s *Session) snapshotLocked() StateSnapshot {
	return StateSnapshot{
		Phase:            s.phase,
		Mode:             s.mode,
		Vertices:         s.vertices.Clone(),
		Metrics:          s.metrics,
		SelectedVertex:   s.selectedVertex,
		Intersections:    append([]polygon.Vertex(nil), s.intersections...),
		OverlapChecked:   s.overlapChecked,
		OverlapConfirmed: s.overlapConfirmed,
		OverlapPending:   s.overlapPending,
	}
}

func (s *Session) emitState(snap StateSnapshot) {
	if s.cb.OnState != nil {
		s.cb.OnState(snap)
	}
}

func (s *Session) emitGeometry(snap StateSnapshot) {
	if s.cb.OnGeometryChange == nil {
		return
	}
	var geom []byte
	if len(snap.Vertices) >= 3 {
		if b, err := snap.Vertices.ExportGeometry(); err == nil {
			geom = b
		}
	}
	s.cb.OnGeometryChange(geom, snap.Metrics)
}

func (s *Session) emitValidation(errs []string) {
	if len(errs) > 0 && s.cb.OnValidationError != nil {
		s.cb.OnValidationError(errs)
	}
}

func (s *Session) emitError(msg string) {
	log.Printf("采集会话 %s: %s", s.ID, msg)
	if s.cb.OnError != nil {
		s.cb.OnError(msg)
	}
}

func (s *Session) emitLimit(msg string) {
	if s.cb.OnLimit != nil {
		s.cb.OnLimit(msg)
	}
}
