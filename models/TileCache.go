package models

// TileCache 底图瓦片的本地缓存
// 外业现场网络不稳，取过的瓦片落库离线复用
type TileCache struct {
	Z        int    `gorm:"primaryKey;autoIncrement:false" json:"z"`
	X        int    `gorm:"primaryKey;autoIncrement:false" json:"x"`
	Y        int    `gorm:"primaryKey;autoIncrement:false" json:"y"`
	TileData []byte `json:"-"`
	Date     string `gorm:"type:varchar(32)" json:"date"`
}

func (TileCache) TableName() string {
	return "tile_cache"
}
