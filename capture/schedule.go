package capture

import (
	"sync"
	"time"
)

// Debouncer 去抖任务：静默期结束后执行一次，期间的重复触发会重置计时
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
	gen   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger 记录一次触发并重置静默计时
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		run := d.fn
		d.fn = nil
		d.timer = nil
		d.mu.Unlock()
		if run != nil {
			run()
		}
	})
}

// Cancel 丢弃未执行的任务
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
}

// Flush 取消计时并立即执行最近一次任务
func (d *Debouncer) Flush() {
	d.mu.Lock()
	run := d.fn
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	d.mu.Unlock()
	if run != nil {
		run()
	}
}

// Throttler 节流任务：固定间隔内至多执行一次，超频触发被丢弃
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{interval: interval}
}

// Run 频率允许时立即执行并返回true，否则丢弃
func (t *Throttler) Run(fn func()) bool {
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return false
	}
	t.last = now
	t.mu.Unlock()
	fn()
	return true
}

// Reset 清除节流窗口，下一次触发立即执行
func (t *Throttler) Reset() {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
}
