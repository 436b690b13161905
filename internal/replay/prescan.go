package replay

import (
	"math"

	"github.com/amr9/crossloadgen/pkg/models"
)

const (
	// PoolSizeFloor is the minimum replay pool size regardless of trace shape.
	PoolSizeFloor = 20
	// PoolSizeCeiling is the safety ceiling spec.md §4.4 suggests.
	PoolSizeCeiling = 500

	bucketWidthMs = 100
)

// PreScan computes the maximum number of events falling in any single
// 100ms window after scaling by speed, matching spec.md §4.4/§4.6's
// pool-sizing pre-scan. k scales the observed peak into a pool size; the
// spec suggests values between 2 and 10 depending on expected per-request
// latency relative to the inter-arrival gap (a larger k for traces with
// tight bursts and slow downstream responses).
func PreScan(events []models.TraceEvent, speed float64, k float64) int {
	if speed <= 0 {
		speed = 1
	}
	if k <= 0 {
		k = 4
	}

	peak := peakBucketCount(events, speed)
	size := int(math.Ceil(float64(peak) * k))
	if size < PoolSizeFloor {
		size = PoolSizeFloor
	}
	if size > PoolSizeCeiling {
		size = PoolSizeCeiling
	}
	return size
}

func peakBucketCount(events []models.TraceEvent, speed float64) int {
	counts := make(map[int64]int)
	var cumulativeMs int64
	peak := 0

	for _, ev := range events {
		cumulativeMs += ev.DelayMs
		offsetMs := float64(cumulativeMs) / speed
		bucket := int64(offsetMs) / bucketWidthMs
		counts[bucket]++
		if counts[bucket] > peak {
			peak = counts[bucket]
		}
	}
	return peak
}

// StreamingPreScan is the streaming-variant equivalent of PreScan: it
// consumes events from a channel (as produced by Stream) rather than a
// pre-loaded slice, so pool sizing for huge traces still only needs a
// single pass before replay begins — the caller is expected to re-stream
// the file for the actual dispatch pass. Since this is the only pass that
// ever sees every event, it also returns the total event count and
// cumulative (unscaled) delay total the caller needs to size the
// completion latch and its timeout, sparing a second summation pass over
// the whole trace.
func StreamingPreScan(events <-chan models.TraceEvent, speed float64, k float64) (poolSize int, eventCount int64, totalDelayMs int64) {
	if speed <= 0 {
		speed = 1
	}
	if k <= 0 {
		k = 4
	}

	counts := make(map[int64]int)
	var cumulativeMs int64
	peak := 0

	for ev := range events {
		eventCount++
		cumulativeMs += ev.DelayMs
		offsetMs := float64(cumulativeMs) / speed
		bucket := int64(offsetMs) / bucketWidthMs
		counts[bucket]++
		if counts[bucket] > peak {
			peak = counts[bucket]
		}
	}

	size := int(math.Ceil(float64(peak) * k))
	if size < PoolSizeFloor {
		size = PoolSizeFloor
	}
	if size > PoolSizeCeiling {
		size = PoolSizeCeiling
	}
	return size, eventCount, cumulativeMs
}
