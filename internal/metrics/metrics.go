// Package metrics aggregates request counters and latency samples. Writes
// are cheap: counter bumps plus an O(1) append into a bounded rolling
// window. Percentiles, memory, and uptime are computed only when a snapshot
// is read.
package metrics

import (
	"net/http"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// windowSize bounds the rolling latency window. Old samples are overwritten
// ring-buffer style once the window is full.
const windowSize = 2048

// Snapshot is a point-in-time view of collected metrics.
type Snapshot struct {
	Requests      RequestStats     `json:"requests"`
	Errors        ErrorStats       `json:"errors"`
	Performance   PerformanceStats `json:"performance"`
	Memory        MemoryStats      `json:"memory"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

// RequestStats counts requests in total and bucketed.
type RequestStats struct {
	Total    int64            `json:"total"`
	ByMethod map[string]int64 `json:"by_method"`
	ByStatus map[string]int64 `json:"by_status"`
}

// ErrorStats counts responses with status >= 500.
type ErrorStats struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"by_type"`
}

// PerformanceStats is derived from the rolling latency window.
type PerformanceStats struct {
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
	Samples   int     `json:"samples"`
	WindowCap int     `json:"window_cap"`
}

// MemoryStats is sampled from the runtime at read time.
type MemoryStats struct {
	AllocMB      float64 `json:"alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	NumGC        uint32  `json:"num_gc"`
	NumGoroutine int     `json:"num_goroutine"`
}

// Collector accumulates request metrics. Safe for concurrent use.
type Collector struct {
	startedAt time.Time

	total  atomic.Int64
	errors atomic.Int64

	mu        sync.Mutex
	byMethod  map[string]int64
	byStatus  map[string]int64
	byErrType map[string]int64
	window    []float64 // latency samples in ms
	windowPos int
	windowLen int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
		byMethod:  make(map[string]int64),
		byStatus:  make(map[string]int64),
		byErrType: make(map[string]int64),
		window:    make([]float64, windowSize),
	}
}

// Record registers one completed request. path is part of the recorded
// tuple but gets no counter of its own: route cardinality is unbounded, so
// aggregation stays on method and status class.
func (c *Collector) Record(method, path string, status int, duration time.Duration) {
	c.total.Add(1)
	isError := status >= 500
	if isError {
		c.errors.Add(1)
	}

	ms := float64(duration.Microseconds()) / 1000.0

	c.mu.Lock()
	c.byMethod[method]++
	c.byStatus[statusClass(status)]++
	if isError {
		c.byErrType[errorKind(status)]++
	}
	c.window[c.windowPos] = ms
	c.windowPos = (c.windowPos + 1) % windowSize
	if c.windowLen < windowSize {
		c.windowLen++
	}
	c.mu.Unlock()
}

// Metrics returns a snapshot. Percentiles are computed here, not on the
// write path.
func (c *Collector) Metrics() Snapshot {
	c.mu.Lock()
	byMethod := copyCounts(c.byMethod)
	byStatus := copyCounts(c.byStatus)
	byErrType := copyCounts(c.byErrType)
	samples := make([]float64, c.windowLen)
	copy(samples, c.window[:c.windowLen])
	c.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		Requests: RequestStats{
			Total:    c.total.Load(),
			ByMethod: byMethod,
			ByStatus: byStatus,
		},
		Errors: ErrorStats{
			Total:  c.errors.Load(),
			ByType: byErrType,
		},
		Performance: derivePerformance(samples),
		Memory: MemoryStats{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
			NumGoroutine: runtime.NumGoroutine(),
		},
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
	}
}

// Reset clears all counters and the latency window. Intended for test
// harnesses, not production use.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.Store(0)
	c.errors.Store(0)
	c.byMethod = make(map[string]int64)
	c.byStatus = make(map[string]int64)
	c.byErrType = make(map[string]int64)
	c.windowPos = 0
	c.windowLen = 0
	c.startedAt = time.Now()
}

func derivePerformance(samples []float64) PerformanceStats {
	stats := PerformanceStats{Samples: len(samples), WindowCap: windowSize}
	if len(samples) == 0 {
		return stats
	}

	sort.Float64s(samples)
	var sum float64
	for _, s := range samples {
		sum += s
	}
	stats.AvgMs = sum / float64(len(samples))
	stats.P50Ms = percentile(samples, 0.50)
	stats.P95Ms = percentile(samples, 0.95)
	stats.P99Ms = percentile(samples, 0.99)
	return stats
}

// percentile expects sorted input. Uses the nearest-rank method.
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func errorKind(status int) string {
	switch status {
	case http.StatusBadGateway:
		return "bad_gateway"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "gateway_timeout"
	default:
		return "internal_error"
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
