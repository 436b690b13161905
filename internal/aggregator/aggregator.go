// Package aggregator turns the stream of per-journey CompletionRecords the
// scheduler produces into the wave-level and run-level statistics spec.md
// §4.5 defines, plus the final Results tree handed to internal/report.
package aggregator

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
)

// Recorder is what internal/engine needs from a run's aggregator,
// satisfied by both Aggregator (buffered) and StreamingAggregator
// (spec.md §4.6's bounded-memory variant), so the engine can pick one at
// construction time based on Config.Streaming without branching anywhere
// else.
type Recorder interface {
	Record(rec models.CompletionRecord)
	Finalize(title string, cfg models.ResultsConfig, totalTimeMs int64, partial bool) models.Results
}

// Aggregator collects CompletionRecords as the scheduler dispatches them and
// computes exact (non-interpolated) order-statistic percentiles once the run
// drains. It is safe for concurrent Record calls from pool workers.
type Aggregator struct {
	mu      sync.Mutex
	records []models.CompletionRecord
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Record appends one completed (or crashed/partial) journey.
func (a *Aggregator) Record(rec models.CompletionRecord) {
	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
}

// Count returns the number of records collected so far.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Finalize computes the full Results tree: one WaveStats per distinct wave
// number among the collected records (in ascending order), plus the
// run-level statistics over every record.
func (a *Aggregator) Finalize(title string, cfg models.ResultsConfig, totalTimeMs int64, partial bool) models.Results {
	a.mu.Lock()
	records := make([]models.CompletionRecord, len(a.records))
	copy(records, a.records)
	a.mu.Unlock()

	byWave := make(map[int][]models.CompletionRecord)
	var waveOrder []int
	for _, rec := range records {
		if _, seen := byWave[rec.Wave]; !seen {
			waveOrder = append(waveOrder, rec.Wave)
		}
		byWave[rec.Wave] = append(byWave[rec.Wave], rec)
	}
	sort.Ints(waveOrder)

	waves := make([]models.WaveStats, 0, len(waveOrder))
	for _, w := range waveOrder {
		waves = append(waves, computeWaveStats(w, byWave[w]))
	}

	overall := computeWaveStats(0, records)

	return models.Results{
		Title:       title,
		Timestamp:   time.Time{}, // stamped by the caller once the run finishes
		Config:      cfg,
		Waves:       waves,
		Records:     records,
		TotalTimeMs: totalTimeMs,

		TotalThreads: len(records),
		SuccessCount: overall.SuccessCount,
		FailureCount: overall.FailureCount,
		SuccessRate:  successRate(overall.SuccessCount, overall.FailureCount),
		MinMs:        overall.MinMs,
		MaxMs:        overall.MaxMs,
		MeanMs:       overall.MeanMs,
		P50Ms:        p50(successLatencies(records)),
		P95Ms:        overall.P95Ms,

		Partial: partial,
	}
}

func successRate(success, failure int) float64 {
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total) * 100
}

func successLatencies(records []models.CompletionRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, rec := range records {
		if rec.Crashed || !rec.Result.Success {
			continue
		}
		out = append(out, rec.Result.TotalLatencyMs())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func computeWaveStats(wave int, records []models.CompletionRecord) models.WaveStats {
	stats := models.WaveStats{Wave: wave, Threads: len(records)}

	latencies := make([]int64, 0, len(records))
	var stepSum [4]int64
	var stepCount [4]int64

	for _, rec := range records {
		if rec.Crashed || !rec.Result.Success {
			stats.FailureCount++
			continue
		}
		stats.SuccessCount++
		latencies = append(latencies, rec.Result.TotalLatencyMs())

		addStep(&stepSum[0], &stepCount[0], rec.Result.Step1)
		addStep(&stepSum[1], &stepCount[1], rec.Result.Step2)
		addStep(&stepSum[2], &stepCount[2], rec.Result.Step3)
		stepSum[3] += step4Latency(rec.Result.Step4)
		stepCount[3]++
	}

	for i := 0; i < 4; i++ {
		if stepCount[i] > 0 {
			stats.StepMeanMs[i] = float64(stepSum[i]) / float64(stepCount[i])
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	if len(latencies) > 0 {
		stats.MinMs = latencies[0]
		stats.MaxMs = latencies[len(latencies)-1]
		stats.MeanMs = mean(latencies)
		stats.P95Ms = percentile(latencies, 0.95)
		stats.StdDevMs = stddev(latencies, stats.MeanMs)
		stats.Outliers = countOutliers(latencies, stats.MeanMs, stats.StdDevMs)
	}

	return stats
}

func addStep(sum, count *int64, step models.StepResult) {
	if step.Start.IsZero() {
		return
	}
	*sum += step.LatencyMs
	*count++
}

func step4Latency(step models.StepResult) int64 {
	var total int64
	for _, it := range step.Iterations {
		total += it.LatencyMs
	}
	return total
}

func mean(sorted []int64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return float64(sum) / float64(len(sorted))
}

// p50 is the exact, non-interpolated median: the element at the middle
// index of the sorted successful-latency vector (spec.md §4.5).
func p50(sorted []int64) int64 { return percentile(sorted, 0.5) }

// percentile returns the element at index floor(q * N), zero-indexed, of an
// already-sorted vector. Empty input yields 0.
func percentile(sorted []int64, q float64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(q * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// stddev is the population (not sample) standard deviation.
func stddev(sorted []int64, mean float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range sorted {
		d := float64(v) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(sorted)))
}

// countOutliers counts latencies more than two standard deviations above
// the mean (spec.md §4.5's outlier flag).
func countOutliers(sorted []int64, mean, stddev float64) int {
	if stddev == 0 {
		return 0
	}
	threshold := mean + 2*stddev
	count := 0
	for _, v := range sorted {
		if float64(v) > threshold {
			count++
		}
	}
	return count
}
