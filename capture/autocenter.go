package capture

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/GrainArc/LandCollect/methods"
)

// centerFields 外部表单推送的定位字段值
type centerFields struct {
	District string
	Village  string
	Lat      string
	Lon      string
}

// autoCenter 自动定心：监听字段变化并按回退链居中视图
// 字段事件去抖触发，另有固定周期兜底轮询捕捉外部写入
type autoCenter struct {
	s        *Session
	mu       sync.Mutex
	fields   centerFields
	debounce *Debouncer
	ticker   *time.Ticker
	done     chan struct{}
	lastHash string
	inFlight bool
}

func newAutoCenter(s *Session) *autoCenter {
	return &autoCenter{
		s:        s,
		debounce: NewDebouncer(centerDebounceDelay),
		done:     make(chan struct{}),
	}
}

func (ac *autoCenter) start() {
	ac.ticker = time.NewTicker(centerPollInterval)
	go func() {
		for {
			select {
			case <-ac.done:
				return
			case <-ac.ticker.C:
				ac.evaluate()
			}
		}
	}()
}

func (ac *autoCenter) stop() {
	ac.debounce.Cancel()
	if ac.ticker != nil {
		ac.ticker.Stop()
	}
	close(ac.done)
}

func (ac *autoCenter) update(f centerFields) {
	ac.mu.Lock()
	ac.fields = f
	ac.mu.Unlock()
	ac.debounce.Trigger(ac.evaluate)
}

// evaluate 执行一次定心尝试
// 相同输入至多尝试一次，指纹比对拦截重复；定心进行中不允许重入
func (ac *autoCenter) evaluate() {
	ac.s.mu.Lock()
	if ac.s.destroyed {
		ac.s.mu.Unlock()
		return
	}
	opts := ac.s.opts.AutoCenter
	ac.s.mu.Unlock()

	ac.mu.Lock()
	if ac.inFlight {
		ac.mu.Unlock()
		return
	}
	f := ac.fields
	if f.District == "" && f.Village == "" && f.Lat == "" && f.Lon == "" {
		ac.mu.Unlock()
		return
	}
	hash := methods.Md5Str(f.District + "|" + f.Village + "|" + f.Lat + "|" + f.Lon)
	if hash == ac.lastHash {
		ac.mu.Unlock()
		return
	}
	if ac.lastHash != "" && !opts.RetryOnFieldChange {
		ac.mu.Unlock()
		return
	}
	ac.inFlight = true
	ac.mu.Unlock()

	ac.runChain(f, opts)

	ac.mu.Lock()
	ac.lastHash = hash
	ac.inFlight = false
	ac.mu.Unlock()
}

// runChain 回退链：坐标字段直接居中，否则地名地理编码，都没有则保持默认视图
func (ac *autoCenter) runChain(f centerFields, opts CenterOptions) {
	lat, errLat := strconv.ParseFloat(f.Lat, 64)
	lng, errLon := strconv.ParseFloat(f.Lon, 64)
	if errLat == nil && errLon == nil && lat != 0 && lng != 0 {
		ac.center(lat, lng, opts.Zoom)
		return
	}
	for _, name := range []string{f.Village, f.District} {
		if name == "" {
			continue
		}
		if glat, glng, ok := ac.geocode(name + opts.CountrySuffix); ok {
			ac.center(glat, glng, opts.Zoom)
			return
		}
	}
}

func (ac *autoCenter) geocode(query string) (float64, float64, bool) {
	g := ac.s.deps.Geocoder
	if g == nil {
		return 0, 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	lat, lng, err := g.Geocode(ctx, query)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

func (ac *autoCenter) center(lat, lng float64, zoom int) {
	if zoom <= 0 {
		zoom = 16
	}
	ac.s.mu.Lock()
	destroyed := ac.s.destroyed
	ac.s.mu.Unlock()
	if destroyed {
		return
	}
	if ac.s.cb.OnCenter != nil {
		ac.s.cb.OnCenter(lat, lng, zoom)
	}
}

// UpdateCenterFields 宿主推送最新的定位字段值
func (s *Session) UpdateCenterFields(district, village, lat, lon string) {
	if s.center == nil {
		return
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.center.update(centerFields{District: district, Village: village, Lat: lat, Lon: lon})
}
