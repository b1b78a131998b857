package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/GrainArc/LandCollect/metrics"
)

// GeocodeCandidate 地理编码候选，坐标按上游习惯是字符串
type GeocodeCandidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// GeocodeService 地名转坐标服务，结果带TTL缓存
type GeocodeService struct {
	baseURL string
	client  *http.Client
	mu      sync.RWMutex
	cache   map[string]geocodeEntry
	ttl     time.Duration
}

type geocodeEntry struct {
	candidates []GeocodeCandidate
	expires    time.Time
}

var (
	geocodeInstance *GeocodeService
	geocodeOnce     sync.Once
)

// InitGeocodeService 初始化地理编码服务（应用启动时调用）
func InitGeocodeService(baseURL string) {
	geocodeOnce.Do(func() {
		if baseURL == "" {
			baseURL = "https://nominatim.openstreetmap.org/search"
		}
		geocodeInstance = &GeocodeService{
			baseURL: baseURL,
			client:  &http.Client{Timeout: 10 * time.Second},
			cache:   make(map[string]geocodeEntry),
			ttl:     24 * time.Hour,
		}
		go geocodeInstance.cleanupLoop()
	})
}

// GetGeocodeService 获取地理编码服务单例
func GetGeocodeService() *GeocodeService {
	return geocodeInstance
}

// cleanupLoop 定期清理过期缓存
func (s *GeocodeService) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		s.cleanup()
	}
}

func (s *GeocodeService) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, entry := range s.cache {
		if now.After(entry.expires) {
			delete(s.cache, key)
		}
	}
}

// Search 查询候选列表，命中缓存直接返回
func (s *GeocodeService) Search(ctx context.Context, query string) ([]GeocodeCandidate, error) {
	s.mu.RLock()
	if entry, ok := s.cache[query]; ok && time.Now().Before(entry.expires) {
		s.mu.RUnlock()
		metrics.GeocodeCacheHitsTotal.Inc()
		return entry.candidates, nil
	}
	s.mu.RUnlock()
	metrics.GeocodeRequestsTotal.Inc()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "5")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "LandCollect/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("地理编码服务返回状态 %d", resp.StatusCode)
	}
	var candidates []GeocodeCandidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[query] = geocodeEntry{candidates: candidates, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return candidates, nil
}

// Geocode 取第一个候选的坐标
func (s *GeocodeService) Geocode(ctx context.Context, query string) (float64, float64, error) {
	candidates, err := s.Search(ctx, query)
	if err != nil {
		return 0, 0, err
	}
	if len(candidates) == 0 {
		return 0, 0, errors.New("未匹配到地名: " + query)
	}
	lat, errLat := strconv.ParseFloat(candidates[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(candidates[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, errors.New("候选坐标解析失败")
	}
	return lat, lon, nil
}
