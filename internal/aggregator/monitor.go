package aggregator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Monitor is the live, approximate view fed to the TUI while a run is in
// flight. It trades the aggregator's exact order statistics for O(1)
// updates via an HDR histogram, the same tradeoff the teacher's dashboard
// monitor makes.
type Monitor struct {
	requests int64
	success  int64
	fail     int64

	mu        sync.Mutex
	histogram *hdrhistogram.Histogram

	startTime time.Time
}

// NewMonitor creates a Monitor tracking latencies from 1µs to 30s at 3
// significant figures, matching the teacher's histogram bounds.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime: time.Now(),
		histogram: hdrhistogram.New(1, 30000000, 3),
	}
}

// Observe records one completed journey's outcome and total latency.
func (m *Monitor) Observe(success bool, latencyMs int64) {
	atomic.AddInt64(&m.requests, 1)
	if success {
		atomic.AddInt64(&m.success, 1)
		m.mu.Lock()
		_ = m.histogram.RecordValue(latencyMs * 1000)
		m.mu.Unlock()
	} else {
		atomic.AddInt64(&m.fail, 1)
	}
}

// LiveSnapshot is the point-in-time view rendered by the TUI dashboard.
type LiveSnapshot struct {
	Elapsed     time.Duration
	Requests    int64
	Success     int64
	Failure     int64
	SuccessRate float64
	RPS         float64
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
	Max         time.Duration
	Min         time.Duration
}

// Snapshot returns the current live view. Approximate — use Aggregator's
// Finalize for the run's authoritative final statistics.
func (m *Monitor) Snapshot() LiveSnapshot {
	reqs := atomic.LoadInt64(&m.requests)
	succ := atomic.LoadInt64(&m.success)
	fail := atomic.LoadInt64(&m.fail)

	elapsed := time.Since(m.startTime)
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(reqs) / elapsed.Seconds()
	}
	successRate := 0.0
	if reqs > 0 {
		successRate = float64(succ) / float64(reqs) * 100
	}

	m.mu.Lock()
	h := m.histogram
	p50 := time.Duration(h.ValueAtQuantile(50)) * time.Microsecond
	p95 := time.Duration(h.ValueAtQuantile(95)) * time.Microsecond
	p99 := time.Duration(h.ValueAtQuantile(99)) * time.Microsecond
	max := time.Duration(h.Max()) * time.Microsecond
	min := time.Duration(h.Min()) * time.Microsecond
	m.mu.Unlock()

	return LiveSnapshot{
		Elapsed:     elapsed,
		Requests:    reqs,
		Success:     succ,
		Failure:     fail,
		SuccessRate: successRate,
		RPS:         rps,
		P50:         p50,
		P95:         p95,
		P99:         p99,
		Max:         max,
		Min:         min,
	}
}
