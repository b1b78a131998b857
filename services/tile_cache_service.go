package services

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GrainArc/LandCollect/config"
	"github.com/GrainArc/LandCollect/models"
	"gorm.io/gorm"
)

// TileService 底图瓦片代理，带数据库缓存
type TileService struct {
	db     *gorm.DB
	client *http.Client
}

var (
	tileInstance *TileService
	tileOnce     sync.Once
)

// InitTileService 应用启动时初始化单例
func InitTileService(db *gorm.DB) {
	tileOnce.Do(func() {
		tileInstance = &TileService{
			db:     db,
			client: &http.Client{Timeout: 15 * time.Second},
		}
	})
}

func GetTileService() *TileService {
	return tileInstance
}

// FetchTile 先查缓存，未命中再取上游并回填
func (s *TileService) FetchTile(z, x, y int) ([]byte, error) {
	var cached models.TileCache
	err := s.db.Where("z = ? AND x = ? AND y = ?", z, x, y).First(&cached).Error
	if err == nil && len(cached.TileData) > 0 {
		return cached.TileData, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	data, err := s.fetchUpstream(z, x, y)
	if err != nil {
		return nil, err
	}
	cache := models.TileCache{
		Z: z, X: x, Y: y,
		TileData: data,
		Date:     time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := s.db.Create(&cache).Error; err != nil {
		log.Printf("瓦片缓存写入失败 %d/%d/%d: %v", z, x, y, err)
	}
	return data, nil
}

func (s *TileService) fetchUpstream(z, x, y int) ([]byte, error) {
	resp, err := s.client.Get(TileURL(config.TileProvider, z, x, y))
	if err != nil {
		return nil, fmt.Errorf("上游瓦片请求失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("上游瓦片返回状态 %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ClearCache 清空缓存表
func (s *TileService) ClearCache() error {
	return s.db.Where("1 = 1").Delete(&models.TileCache{}).Error
}

// TileURL 把模板中的{z}/{x}/{y}换成实际行列号，{s}固定取a子域
func TileURL(template string, z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
		"{s}", "a",
	)
	return r.Replace(template)
}
