package capture

import "errors"

var (
	ErrDestroyed      = errors.New("会话已销毁")
	ErrPhase          = errors.New("当前阶段不允许该操作")
	ErrVertexLimit    = errors.New("顶点数已达上限")
	ErrRingMinimum    = errors.New("删除后顶点数将少于3个")
	ErrTooFewVertices = errors.New("顶点数不足3个，无法闭合")
	ErrIndex          = errors.New("顶点序号越界")
	ErrBadMode        = errors.New("无效的采集方式")
	ErrNoPosition     = errors.New("尚未获取到定位")
	ErrAccuracyLow    = errors.New("定位精度不满足打点要求")
	ErrUnconfirmed    = errors.New("存在未确认的压盖")
)
