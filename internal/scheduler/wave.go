package scheduler

import (
	"context"
	"time"
)

// WaveItem is a single dispatched journey invocation from the wave source.
type WaveItem struct {
	Wave   int
	Thread int
	Launch time.Time
}

// WaveSource launches RPS journeys per second for Duration seconds
// (spec.md §4.4). Wave w is launched at T0 + (w-1)*1s regardless of
// whether prior waves finished.
type WaveSource struct {
	RPS      int
	Duration int // seconds
}

// PoolSize is the worker pool size recommended for this source so
// overlapping waves all make progress: at least RPS*8.
func (w WaveSource) PoolSize() int {
	size := w.RPS * 8
	if size < 1 {
		size = 1
	}
	return size
}

// Total is the number of journeys this source will dispatch in total.
func (w WaveSource) Total() int { return w.RPS * w.Duration }

// Run schedules every wave on wheel, submitting RPS journeys per wave to
// pool. dispatch is invoked once per journey, on a pool worker goroutine.
func (w WaveSource) Run(ctx context.Context, wheel *Wheel, pool *Pool, t0 time.Time, dispatch func(WaveItem)) {
	for wave := 1; wave <= w.Duration; wave++ {
		wave := wave
		launchAt := t0.Add(time.Duration(wave-1) * time.Second)

		wheel.Schedule(time.Until(launchAt), func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			for thread := 0; thread < w.RPS; thread++ {
				thread := thread
				pool.Submit(func() {
					dispatch(WaveItem{Wave: wave, Thread: thread, Launch: time.Now()})
				})
			}
		})
	}
}
