package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	mobileUA  = "Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile Safari/537.36"
)

func newDrawSession(opts Options, deps Deps, cb Callbacks) *Session {
	if opts.CaptureMode == "" {
		opts.CaptureMode = "DRAW"
	}
	s := NewSession(opts, deps, cb)
	s.Begin(desktopUA)
	return s
}

func addTriangle(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.AddVertex(0, 0))
	require.NoError(t, s.AddVertex(0, 0.001))
	require.NoError(t, s.AddVertex(0.001, 0.001))
}

func TestBeginModePolicy(t *testing.T) {
	cases := []struct {
		name        string
		captureMode string
		defaultMode string
		ua          string
		wantPhase   string
		wantMode    string
	}{
		{"仅查看", "VIEW_ONLY", "", desktopUA, PhaseView, ""},
		{"固定徒步", "WALK", "", desktopUA, PhaseDrawing, ModeWalk},
		{"固定绘制", "DRAW", "", desktopUA, PhaseDrawing, ModeDraw},
		{"自动判断移动端", "BOTH", "AUTO", mobileUA, PhaseSelect, ""},
		{"自动判断桌面端", "BOTH", "AUTO", desktopUA, PhaseDrawing, ModeDraw},
		{"默认徒步", "BOTH", "WALK", mobileUA, PhaseDrawing, ModeWalk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession(Options{CaptureMode: tc.captureMode, DefaultMode: tc.defaultMode}, Deps{}, Callbacks{})
			defer s.Destroy()
			snap := s.Begin(tc.ua)
			assert.Equal(t, tc.wantPhase, snap.Phase)
			assert.Equal(t, tc.wantMode, snap.Mode)
		})
	}
}

func TestChooseMode(t *testing.T) {
	s := NewSession(Options{CaptureMode: "BOTH", DefaultMode: "AUTO"}, Deps{}, Callbacks{})
	defer s.Destroy()
	snap := s.Begin(mobileUA)
	require.Equal(t, PhaseSelect, snap.Phase)

	assert.ErrorIs(t, s.ChooseMode("FLY"), ErrBadMode)
	require.NoError(t, s.ChooseMode(ModeWalk))
	snap = s.Snapshot()
	assert.Equal(t, PhaseDrawing, snap.Phase)
	assert.Equal(t, ModeWalk, snap.Mode)

	assert.ErrorIs(t, s.ChooseMode(ModeDraw), ErrPhase)
}

func TestAddVertexOutsideDrawing(t *testing.T) {
	s := NewSession(Options{CaptureMode: "VIEW_ONLY"}, Deps{}, Callbacks{})
	defer s.Destroy()
	s.Begin(desktopUA)
	assert.ErrorIs(t, s.AddVertex(0, 0), ErrPhase)
}

func TestVertexLimitRejectsWithoutMutation(t *testing.T) {
	limitMsg := make(chan string, 1)
	opts := Options{Validation: ValidationOptions{MaxVertices: 4}}
	s := newDrawSession(opts, Deps{}, Callbacks{OnLimit: func(msg string) { limitMsg <- msg }})
	defer s.Destroy()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.AddVertex(float64(i)*0.0001, 0))
	}
	err := s.AddVertex(0.001, 0.001)
	assert.ErrorIs(t, err, ErrVertexLimit)
	assert.Len(t, s.Snapshot().Vertices, 4)
	select {
	case msg := <-limitMsg:
		assert.Contains(t, msg, "上限")
	case <-time.After(time.Second):
		t.Fatal("未收到顶点上限提示")
	}
}

func TestUndoLastVertex(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)

	s.UndoLastVertex()
	assert.Len(t, s.Snapshot().Vertices, 2)
	s.UndoLastVertex()
	s.UndoLastVertex()
	assert.Len(t, s.Snapshot().Vertices, 0)
	s.UndoLastVertex() // 空环时为空操作
	assert.Len(t, s.Snapshot().Vertices, 0)
}

func TestDeleteVertexRefusedAtThree(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)

	assert.ErrorIs(t, s.DeleteVertex(0), ErrRingMinimum)
	assert.Len(t, s.Snapshot().Vertices, 3)
}

func TestDeleteVertexClearsSelection(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)
	require.NoError(t, s.AddVertex(0.001, 0))
	require.NoError(t, s.MoveVertex(2, 0.002, 0.002))

	require.NoError(t, s.DeleteVertex(2))
	snap := s.Snapshot()
	assert.Len(t, snap.Vertices, 3)
	assert.Equal(t, -1, snap.SelectedVertex)
}

func TestDeleteVertexIndexOutOfRange(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)
	require.NoError(t, s.AddVertex(0.001, 0))

	assert.ErrorIs(t, s.DeleteVertex(-1), ErrIndex)
	assert.ErrorIs(t, s.DeleteVertex(4), ErrIndex)
}

func TestCompleteRefusedBelowThree(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	require.NoError(t, s.AddVertex(0, 0))
	require.NoError(t, s.AddVertex(0, 0.001))

	assert.ErrorIs(t, s.CompletePolygon(), ErrTooFewVertices)
	assert.Equal(t, PhaseDrawing, s.Snapshot().Phase)
}

func TestCompleteTransitionsToPreview(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)

	require.NoError(t, s.CompletePolygon())
	snap := s.Snapshot()
	assert.Equal(t, PhasePreview, snap.Phase)
	require.NotNil(t, snap.Metrics)
	assert.Greater(t, snap.Metrics.AreaSquareMeters, 0.0)
	assert.ErrorIs(t, s.AddVertex(1, 1), ErrPhase)
}

func TestInsertVertexOnEdge(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)

	require.NoError(t, s.InsertVertexOnEdge(0, 0, 0.0005))
	snap := s.Snapshot()
	require.Len(t, snap.Vertices, 4)
	assert.Equal(t, 0.0005, snap.Vertices[1].Lng)
	assert.Equal(t, -1, snap.SelectedVertex)
}

func TestMoveVertexThenEndMove(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)

	require.NoError(t, s.MoveVertex(1, 0.0002, 0.0015))
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.SelectedVertex)
	assert.Equal(t, 0.0015, snap.Vertices[1].Lng)

	require.NoError(t, s.EndMove(1, 0.0003, 0.002))
	snap = s.Snapshot()
	assert.Equal(t, 0.0003, snap.Vertices[1].Lat)
	assert.Equal(t, 0.002, snap.Vertices[1].Lng)
	require.NotNil(t, snap.Metrics)
}

func TestClearReturnsToEmpty(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	addTriangle(t, s)
	require.NoError(t, s.CompletePolygon())

	s.Clear()
	snap := s.Snapshot()
	assert.Equal(t, PhaseEmpty, snap.Phase)
	assert.Equal(t, ModeDraw, snap.Mode, "清空后保留采集方式")
	assert.Len(t, snap.Vertices, 0)
	assert.Nil(t, snap.Metrics)
	assert.False(t, snap.OverlapChecked)
}

func TestValidationErrorsSurfaced(t *testing.T) {
	errCh := make(chan []string, 1)
	opts := Options{Validation: ValidationOptions{MinAreaHectares: 100}}
	s := newDrawSession(opts, Deps{}, Callbacks{OnValidationError: func(errs []string) { errCh <- errs }})
	defer s.Destroy()

	// 蝴蝶结形，存在自相交
	require.NoError(t, s.AddVertex(0, 0))
	require.NoError(t, s.AddVertex(0.004, 0.004))
	require.NoError(t, s.AddVertex(0, 0.004))
	require.NoError(t, s.AddVertex(0.004, 0))
	require.NoError(t, s.CompletePolygon())

	select {
	case errs := <-errCh:
		joined := ""
		for _, e := range errs {
			joined += e + ";"
		}
		assert.Contains(t, joined, "自相交")
		assert.Contains(t, joined, "面积小于下限")
	case <-time.After(time.Second):
		t.Fatal("未收到校验错误")
	}
	// 校验警告不改变阶段
	assert.Equal(t, PhasePreview, s.Snapshot().Phase)
}

func TestLoadInitialSeedsBaseline(t *testing.T) {
	src := newDrawSession(Options{}, Deps{}, Callbacks{})
	addTriangle(t, src)
	require.NoError(t, src.AddVertex(0.001, 0))
	require.NoError(t, src.CompletePolygon())
	geom, _, err := src.SaveSnapshot()
	require.NoError(t, err)
	src.Destroy()

	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	defer s.Destroy()
	require.NoError(t, s.LoadInitial(geom, 5.0))

	snap := s.Snapshot()
	assert.Equal(t, PhasePreview, snap.Phase)
	require.Len(t, snap.Vertices, 4)
	assert.Equal(t, 0.001, snap.Vertices[2].Lat)
	assert.Equal(t, 5.0, s.initialArea)

	// 基线只允许载入一次
	assert.Error(t, s.LoadInitial(geom, 5.0))
}

func TestDestroyIdempotent(t *testing.T) {
	s := newDrawSession(Options{}, Deps{}, Callbacks{})
	addTriangle(t, s)

	s.Destroy()
	s.Destroy()
	assert.ErrorIs(t, s.AddVertex(1, 1), ErrDestroyed)
	assert.ErrorIs(t, s.ChooseMode(ModeWalk), ErrDestroyed)
	s.Clear()
	s.UndoLastVertex()
	assert.Len(t, s.Snapshot().Vertices, 3, "销毁后状态不再变化")
}
