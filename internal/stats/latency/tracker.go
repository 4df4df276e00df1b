// Package latency 按序列维护 REST 响应耗时的滚动窗口统计。
// 每个用例 ID（或 "instrument/timeframe"）是一个独立序列。
package latency

import (
	"sort"
	"sync"
	"time"

	"market-api-conformance/internal/util/timeutil"
)

// Stats 时延统计快照（滚动窗口）
// 单位：毫秒。
type Stats struct {
	// Series 序列名
	Series string `json:"series"`
	// Count 样本总数（累计，不受窗口大小限制）
	Count int64 `json:"count"`

	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool

	mu sync.Mutex
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// snapshot 返回累计样本数、各分位值、窗口内最大值与均值
func (w *rollingWindow) snapshot(qs ...float64) (count int64, values []int64, max int64, mean float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	count = w.count
	values = make([]int64, len(qs))
	if len(w.buf) == 0 {
		return count, values, 0, 0
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		idx := int(float64(n-1) * q)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		values[i] = tmp[idx]
	}

	var sum int64
	for _, v := range tmp {
		sum += v
	}
	return count, values, tmp[n-1], float64(sum) / float64(n)
}

// Tracker 时延追踪器
// 序列在首次 Add 时创建，并发安全。
type Tracker struct {
	windowSize int

	mu     sync.RWMutex
	series map[string]*rollingWindow
	order  []string
}

// NewTracker 创建时延追踪器
// 参数 windowSize: 每个序列的滚动窗口大小，用于分位数计算
func NewTracker(windowSize int) *Tracker {
	return &Tracker{
		windowSize: windowSize,
		series:     make(map[string]*rollingWindow),
	}
}

// Add 记录一次耗时样本
// 参数 series: 序列名
// 参数 d: 耗时，负数按 0 记录
func (t *Tracker) Add(series string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.window(series).add(int64(d))
}

func (t *Tracker) window(series string) *rollingWindow {
	t.mu.RLock()
	w, ok := t.series[series]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.series[series]; ok {
		return w
	}
	w = newRollingWindow(t.windowSize)
	t.series[series] = w
	t.order = append(t.order, series)
	return w
}

// Stats 获取指定序列的统计快照
// 返回: 序列不存在时返回仅含 Series 的零值快照
func (t *Tracker) Stats(series string) Stats {
	t.mu.RLock()
	w, ok := t.series[series]
	t.mu.RUnlock()
	if !ok {
		return Stats{Series: series}
	}

	count, qs, max, mean := w.snapshot(0.50, 0.90, 0.95, 0.99)
	return Stats{
		Series: series,
		Count:  count,
		P50Ms:  timeutil.DurationMs(time.Duration(qs[0])),
		P90Ms:  timeutil.DurationMs(time.Duration(qs[1])),
		P95Ms:  timeutil.DurationMs(time.Duration(qs[2])),
		P99Ms:  timeutil.DurationMs(time.Duration(qs[3])),
		MaxMs:  timeutil.DurationMs(time.Duration(max)),
		MeanMs: mean / float64(time.Millisecond),
	}
}

// Series 按首次出现顺序返回全部序列名
func (t *Tracker) Series() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
