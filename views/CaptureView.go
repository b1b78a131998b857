package views

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/LandCollect/capture"
	"github.com/GrainArc/LandCollect/metrics"
	"github.com/GrainArc/LandCollect/models"
	"github.com/GrainArc/LandCollect/polygon"
	"github.com/GrainArc/LandCollect/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/datatypes"
)

// 边界采集会话

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 生产环境需要严格检查
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type CaptureHandler struct {
	recordService *services.BoundaryService
}

func NewCaptureHandler() *CaptureHandler {
	return &CaptureHandler{
		recordService: services.NewBoundaryService(models.DB),
	}
}

// wsClient 序列化WebSocket写操作，推送来自多个计时协程
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsClient) push(v interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(v); err != nil {
		log.Printf("推送失败: %v", err)
	}
}

func (w *wsClient) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// captureMsg 客户端消息，按action分发
type captureMsg struct {
	Action   string           `json:"action"`
	Options  json.RawMessage  `json:"options,omitempty"`
	Mode     string           `json:"mode,omitempty"`
	Lat      float64          `json:"lat,omitempty"`
	Lng      float64          `json:"lng,omitempty"`
	Accuracy float64          `json:"accuracy,omitempty"`
	Index    int              `json:"index,omitempty"`
	Edge     int              `json:"edge,omitempty"`
	Bounds   string           `json:"bounds,omitempty"`
	District string           `json:"district,omitempty"`
	Village  string           `json:"village,omitempty"`
	LatText  string           `json:"lat_text,omitempty"`
	LonText  string           `json:"lon_text,omitempty"`
	Save     *SaveBoundaryReq `json:"save,omitempty"`
}

// captureConn 单条连接的会话上下文
type captureConn struct {
	client   *wsClient
	sess     *capture.Session
	mac      string
	initGeo  datatypes.JSON
	initArea float64
}

// CaptureWS 采集入口，升级到WebSocket后由消息驱动状态机
// 第一条消息必须是start，其余动作在会话建立后才被接受
func (h *CaptureHandler) CaptureWS(c *gin.Context) {
	userAgent := c.GetHeader("User-Agent")
	mac := c.Query("mac")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	cc := &captureConn{client: &wsClient{conn: conn}, mac: mac}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		if cc.sess != nil {
			cc.sess.Destroy()
		}
		conn.Close()
		log.Println("采集会话连接关闭")
	}()

	// 心跳
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cc.client.ping(); err != nil {
					log.Printf("心跳失败: %v", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg captureMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket读取错误: %v", err)
			}
			return
		}
		metrics.WsActionsTotal.WithLabelValues(msg.Action).Inc()

		if msg.Action == "start" {
			if cc.sess != nil {
				cc.client.push(CapturePush{Type: "error", Message: "会话已启动"})
				continue
			}
			h.startSession(cc, msg.Options, userAgent)
			continue
		}
		if cc.sess == nil {
			cc.client.push(CapturePush{Type: "error", Message: "请先发送start建立会话"})
			continue
		}
		if msg.Action == "destroy" {
			// 主动销毁视为放弃，断线则保留草稿可恢复
			cc.sess.Destroy()
			if err := h.recordService.MarkDraft(cc.sess.ID, "discarded"); err != nil {
				log.Printf("草稿状态更新失败: %v", err)
			}
			return
		}
		h.dispatch(cc, msg)
	}
}

// startSession 以默认配置为底，客户端options逐项覆盖
func (h *CaptureHandler) startSession(cc *captureConn, raw json.RawMessage, userAgent string) {
	opts := capture.DefaultOptions()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			cc.client.push(CapturePush{Type: "error", Message: "配置解析失败: " + err.Error()})
			return
		}
	}

	deps := capture.Deps{Geocoder: services.GetGeocodeService()}
	if opts.Overlap.Enabled || opts.NearbyParcels.Enabled != "DISABLED" {
		api, err := services.NewApiClient(opts.ApiBase)
		if err != nil {
			// 地址不合法时放弃压盖与周边能力，采集本身不受影响
			log.Printf("接口基地址不可用: %v", err)
		} else {
			deps.Overlap = api
			deps.Nearby = api
		}
	}

	cb := capture.Callbacks{
		OnState: func(snap capture.StateSnapshot) {
			cc.client.push(CapturePush{Type: "state", State: &snap})
		},
		OnGeometryChange: func(geometry []byte, m *polygon.Metrics) {
			cc.client.push(CapturePush{Type: "geometry", Geometry: geometry, Metrics: m})
			h.persistDraft(cc)
		},
		OnValidationError: func(errs []string) {
			cc.client.push(CapturePush{Type: "validation", Errors: errs})
		},
		OnError: func(msg string) {
			cc.client.push(CapturePush{Type: "error", Message: msg})
		},
		OnOverlaps: func(records []capture.OverlapRecord, pending bool) {
			cc.client.push(CapturePush{Type: "overlaps", Records: records, Pending: pending})
		},
		OnCenter: func(lat, lng float64, zoom int) {
			cc.client.push(CapturePush{Type: "center", Lat: lat, Lng: lng, Zoom: zoom})
		},
		OnCloseHint: func(distance float64) {
			cc.client.push(CapturePush{Type: "close_hint", Distance: distance})
		},
		OnGps: func(status capture.GpsStatus) {
			cc.client.push(CapturePush{Type: "gps", Gps: &status})
		},
		OnNearby: func(features []byte) {
			cc.client.push(CapturePush{Type: "nearby", Features: features})
		},
		OnLimit: func(msg string) {
			cc.client.push(CapturePush{Type: "limit", Message: msg})
		},
	}

	cc.sess = capture.NewSession(opts, deps, cb)

	if opts.RecordId != "" {
		if b, err := h.recordService.GetBoundary(opts.RecordId); err == nil {
			cc.initGeo = b.Geojson
			cc.initArea = b.AreaHectare
		} else {
			cc.client.push(CapturePush{Type: "error", Message: "记录不存在: " + opts.RecordId})
		}
	}

	snap := cc.sess.Begin(userAgent)
	metrics.SessionsStarted.Inc()
	cc.client.push(CapturePush{Type: "init", SessionID: cc.sess.ID, State: &snap, Options: &opts})

	if len(cc.initGeo) > 0 {
		if err := cc.sess.LoadInitial(cc.initGeo, cc.initArea); err != nil {
			cc.client.push(CapturePush{Type: "error", Message: "载入既有几何失败: " + err.Error()})
		}
	}
}

func (h *CaptureHandler) dispatch(cc *captureConn, msg captureMsg) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("操作%s发生panic: %v", msg.Action, r)
			cc.client.push(CapturePush{Type: "error", Message: fmt.Sprintf("操作失败: %v", r)})
		}
	}()

	sess := cc.sess
	var err error
	switch msg.Action {
	case "choose_mode":
		err = sess.ChooseMode(msg.Mode)
	case "add_vertex":
		err = sess.AddVertex(msg.Lat, msg.Lng)
	case "undo":
		sess.UndoLastVertex()
	case "delete_vertex":
		err = sess.DeleteVertex(msg.Index)
	case "insert_vertex":
		err = sess.InsertVertexOnEdge(msg.Edge, msg.Lat, msg.Lng)
	case "move_vertex":
		err = sess.MoveVertex(msg.Index, msg.Lat, msg.Lng)
	case "end_move":
		err = sess.EndMove(msg.Index, msg.Lat, msg.Lng)
	case "complete":
		err = sess.CompletePolygon()
	case "edit":
		err = sess.EnterEditMode()
	case "clear":
		sess.Clear()
	case "confirm_overlap":
		err = sess.ConfirmOverlap()
	case "check_overlap":
		sess.CheckOverlap()
	case "fetch_nearby":
		sess.FetchNearby(msg.Bounds)
	case "position":
		sess.UpdatePosition(msg.Lat, msg.Lng, msg.Accuracy)
	case "mark_corner":
		err = sess.MarkCorner()
	case "center_fields":
		sess.UpdateCenterFields(msg.District, msg.Village, msg.LatText, msg.LonText)
	case "save":
		h.saveFromSession(cc, msg.Save)
	case "snapshot":
		snap := sess.Snapshot()
		cc.client.push(CapturePush{Type: "state", State: &snap})
	default:
		cc.client.push(CapturePush{Type: "error", Message: "未知操作: " + msg.Action})
	}
	if err != nil {
		cc.client.push(CapturePush{Type: "error", Message: err.Error()})
	}
}

// saveFromSession 校验通过后持久化并结束本轮采集
func (h *CaptureHandler) saveFromSession(cc *captureConn, req *SaveBoundaryReq) {
	geometry, m, err := cc.sess.SaveSnapshot()
	if err != nil {
		cc.client.push(CapturePush{Type: "error", Message: err.Error()})
		return
	}

	opts := cc.sess.Options()
	in := services.SaveBoundaryInput{
		BSM:          opts.RecordId,
		FormId:       opts.Overlap.FormId,
		MAC:          cc.mac,
		Geometry:     geometry,
		Metrics:      m,
		OutputFields: opts.OutputFields,
	}
	if req != nil {
		if req.BSM != "" {
			in.BSM = req.BSM
		}
		if req.FormId != "" {
			in.FormId = req.FormId
		}
		if req.MAC != "" {
			in.MAC = req.MAC
		}
		in.Name = req.Name
		in.XZQMC = req.XZQMC
		in.CMC = req.CMC
		in.Attributes = req.Attributes
	}

	b, err := h.recordService.SaveBoundary(in)
	if err != nil {
		cc.client.push(CapturePush{Type: "error", Message: "保存失败: " + err.Error()})
		return
	}
	cc.sess.MarkSaved()
	if err := h.recordService.MarkDraft(cc.sess.ID, "completed"); err != nil {
		log.Printf("草稿状态更新失败: %v", err)
	}
	metrics.SessionsSaved.Inc()
	cc.client.push(CapturePush{Type: "saved", Bsm: b.BSM})
}

// persistDraft 每次几何变更落一次草稿，断线后可按SessionID恢复
func (h *CaptureHandler) persistDraft(cc *captureConn) {
	if cc.sess == nil {
		return
	}
	snap := cc.sess.Snapshot()
	verts, _ := json.Marshal(snap.Vertices)
	samples, _ := json.Marshal(cc.sess.AccuracySamples())
	d := &models.CaptureDraft{
		SessionID:   cc.sess.ID,
		BSM:         cc.sess.Options().RecordId,
		Mode:        snap.Mode,
		Phase:       snap.Phase,
		MAC:         cc.mac,
		Date:        time.Now().Format("2006-01-02 15:04:05"),
		Status:      "active",
		Vertices:    datatypes.JSON(verts),
		Accuracy:    datatypes.JSON(samples),
		InitGeojson: cc.initGeo,
		InitArea:    cc.initArea,
	}
	if err := h.recordService.SaveDraft(d); err != nil {
		log.Printf("草稿保存失败: %v", err)
	}
}

// CaptureOptions 前端初始化用的默认配置
func (h *CaptureHandler) CaptureOptions(c *gin.Context) {
	opts := capture.DefaultOptions()
	c.JSON(http.StatusOK, gin.H{
		"options": opts,
		"mobile":  capture.IsMobileUA(c.GetHeader("User-Agent")),
	})
}
