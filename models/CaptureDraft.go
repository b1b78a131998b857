package models

import "gorm.io/datatypes"

// CaptureDraft 采集会话快照，连接中断后按SessionID恢复
type CaptureDraft struct {
	SessionID   string         `gorm:"type:varchar(255);primary_key"`
	BSM         string         `gorm:"type:varchar(255);index"`      // 编辑的既有边界，新采集为空
	Mode        string         `gorm:"type:varchar(50)"`
	Phase       string         `gorm:"type:varchar(50)"`
	MAC         string         `gorm:"type:varchar(255)"`
	Date        string         `gorm:"type:varchar(255)"`
	Status      string         `gorm:"type:varchar(50)"`             // active / completed / discarded
	Vertices    datatypes.JSON `gorm:"type:jsonb"`                   // 未闭合顶点环
	Accuracy    datatypes.JSON `gorm:"type:jsonb"`                   // 顶点精度采样
	InitGeojson datatypes.JSON `gorm:"type:jsonb"`                   // 编辑基线几何
	InitArea    float64        // 基线面积(公顷)
}
