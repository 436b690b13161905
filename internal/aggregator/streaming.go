package aggregator

import (
	"math"
	"sort"
	"sync"

	"github.com/amr9/crossloadgen/internal/replay"
	"github.com/amr9/crossloadgen/pkg/models"
)

const (
	// recordReservoirCap bounds retained per-event completion detail.
	recordReservoirCap = 500
	// latencyReservoirCap bounds the latency sample used for percentile
	// estimation.
	latencyReservoirCap = 10000
)

// StreamingAggregator is the spec.md §4.6 streaming-variant aggregator.
// Success/failure counts, the latency sum and the min/max are tracked
// exactly with atomics-free counters under a mutex, so a trace of any size
// can be summarized without unbounded memory; per-event detail (Records)
// and the percentiles derived from it are approximate once a run exceeds
// the reservoir caps, same tradeoff spec.md §4.6 describes.
type StreamingAggregator struct {
	mu sync.Mutex

	total, success, failure int64
	sumLatencyMs            int64
	minMs, maxMs            int64

	records   *replay.Reservoir[models.CompletionRecord]
	latencies *replay.Reservoir[int64]
}

// NewStreaming creates an empty StreamingAggregator.
func NewStreaming() *StreamingAggregator {
	return &StreamingAggregator{
		minMs:     math.MaxInt64,
		records:   replay.NewReservoir[models.CompletionRecord](recordReservoirCap),
		latencies: replay.NewReservoir[int64](latencyReservoirCap),
	}
}

// Record folds one completed (or crashed) journey into the exact counters
// and offers it to both reservoirs.
func (a *StreamingAggregator) Record(rec models.CompletionRecord) {
	success := !rec.Crashed && rec.Result.Success

	a.mu.Lock()
	a.total++
	if success {
		a.success++
		lat := rec.Result.TotalLatencyMs()
		a.sumLatencyMs += lat
		if lat < a.minMs {
			a.minMs = lat
		}
		if lat > a.maxMs {
			a.maxMs = lat
		}
	} else {
		a.failure++
	}
	a.mu.Unlock()

	a.records.Offer(rec)
	if success {
		a.latencies.Offer(rec.Result.TotalLatencyMs())
	}
}

// Count returns the exact number of records observed so far.
func (a *StreamingAggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.total)
}

// Finalize computes the run-level Results tree from the exact counters plus
// the reservoir samples. Waves are left empty: a sampled subset of events
// can't be grouped into the per-wave breakdown the buffered Aggregator
// produces from its complete record set, and a partial, misleading
// breakdown is worse than none.
func (a *StreamingAggregator) Finalize(title string, cfg models.ResultsConfig, totalTimeMs int64, partial bool) models.Results {
	a.mu.Lock()
	total, success, failure := a.total, a.success, a.failure
	sumLatencyMs, minMs, maxMs := a.sumLatencyMs, a.minMs, a.maxMs
	a.mu.Unlock()

	if minMs == math.MaxInt64 {
		minMs = 0
	}

	latencySamples := a.latencies.Samples()
	sort.Slice(latencySamples, func(i, j int) bool { return latencySamples[i] < latencySamples[j] })

	var meanMs float64
	if success > 0 {
		meanMs = float64(sumLatencyMs) / float64(success)
	}

	return models.Results{
		Title:       title,
		Config:      cfg,
		Records:     a.records.Samples(),
		TotalTimeMs: totalTimeMs,

		TotalThreads: int(total),
		SuccessCount: int(success),
		FailureCount: int(failure),
		SuccessRate:  successRate(int(success), int(failure)),
		MinMs:        minMs,
		MaxMs:        maxMs,
		MeanMs:       meanMs,
		P50Ms:        p50(latencySamples),
		P95Ms:        percentile(latencySamples, 0.95),

		Partial: partial,
	}
}
