package engine

import (
	"context"
	"time"

	"github.com/amr9/crossloadgen/internal/scheduler"
	"github.com/amr9/crossloadgen/pkg/models"
)

// RunWave drives synthetic wave mode: RPS journeys launched every second
// for Duration seconds (spec.md §4.4).
func (e *Engine) RunWave(ctx context.Context) (models.Results, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wheel := scheduler.NewWheel()
	src := scheduler.WaveSource{RPS: e.cfg.RPS, Duration: e.cfg.Duration}
	pool := scheduler.NewPool(src.PoolSize())
	defer pool.Close()

	total := int64(src.Total())
	latch := scheduler.NewCompletionLatch(total)

	t0 := time.Now()
	src.Run(runCtx, wheel, pool, t0, func(item scheduler.WaveItem) {
		e.runOneWaveJourney(runCtx, item, latch, cancel)
	})

	margin := safetyMargin(e.cfg.Timeout)
	expected := time.Duration(e.cfg.Duration) * time.Second
	partial := latch.Await(expected + margin)
	if partial {
		e.log.Warnw("wave run ended partial", "reason", "completion latch did not drain in time")
	}

	totalTimeMs := time.Since(t0).Milliseconds()
	results := e.agg.Finalize(e.cfg.Title, e.resultsConfig(), totalTimeMs, partial)
	results.Timestamp = runTimestamp()
	return results, nil
}

func (e *Engine) runOneWaveJourney(ctx context.Context, item scheduler.WaveItem, latch *scheduler.CompletionLatch, cancel context.CancelFunc) {
	defer latch.CountDown()

	uid := e.uids.Next()
	result := e.exec.Run(ctx, uid)

	rec := models.CompletionRecord{
		Wave:      item.Wave,
		Thread:    item.Thread,
		UID:       uid,
		Launch:    item.Launch,
		Completed: time.Now(),
		Result:    result,
	}

	if e.record(rec) {
		e.log.Warnw("circuit breaker tripped, cancelling run", "reason", e.breaker.Reason())
		cancel()
		latch.Cancel()
	}
}

func (e *Engine) resultsConfig() models.ResultsConfig {
	return models.ResultsConfig{
		RPS:       e.cfg.RPS,
		DurationS: e.cfg.Duration,
		PuzzleID:  e.cfg.PuzzleID,
		StateLen:  e.cfg.StateLen,
		TrueRPS:   true,
	}
}

// safetyMargin satisfies both spec.md §4.4's "safety_margin >= 2 *
// max_expected_latency" and §5's concrete "scheduled_duration + 2 min"
// terminating-barrier rule: it is the larger of the two.
func safetyMargin(timeout time.Duration) time.Duration {
	fromLatency := 2 * timeout
	if fromLatency < safetyMarginFloor {
		return safetyMarginFloor
	}
	return fromLatency
}

func runTimestamp() time.Time { return time.Now() }
