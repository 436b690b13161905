package scheduler

import (
	"context"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
	"golang.org/x/time/rate"
)

// ReplayItem is a single dispatched replay event.
type ReplayItem struct {
	Event  models.TraceEvent
	Launch time.Time
}

// ReplaySource dispatches trace events at their cumulative-delay offsets,
// scaled by Speed: event i fires at T0 + (sum of delays before i) / Speed
// (spec.md §4.4). Events must arrive on the channel in non-decreasing
// cumulative-delay order (invariant 6) — the readers in internal/replay
// guarantee this since a JSONL trace is itself ordered.
//
// MaxRate, if positive, caps the actual dispatch rate independent of the
// cumulative-offset schedule: a speed factor can otherwise compress a
// bursty trace into a rate the target cannot sanely absorb. The limiter
// runs on the pool worker, never on the wheel, so a throttled dispatch
// never delays scheduling later events.
type ReplaySource struct {
	Speed   float64
	MaxRate float64
}

// Run consumes events from the channel, scheduling each one's dispatch.
// Returns the number of events scheduled once the channel closes or ctx is
// cancelled.
func (r ReplaySource) Run(ctx context.Context, wheel *Wheel, pool *Pool, t0 time.Time, events <-chan models.TraceEvent, dispatch func(ReplayItem)) int {
	speed := r.Speed
	if speed <= 0 {
		speed = 1
	}

	var limiter *rate.Limiter
	if r.MaxRate > 0 {
		burst := int(r.MaxRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(r.MaxRate), burst)
	}

	var cumulativeMs int64
	count := 0

	for ev := range events {
		select {
		case <-ctx.Done():
			return count
		default:
		}

		cumulativeMs += ev.DelayMs
		offsetMs := float64(cumulativeMs) / speed
		launchAt := t0.Add(time.Duration(offsetMs * float64(time.Millisecond)))

		ev := ev
		wheel.Schedule(time.Until(launchAt), func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			pool.Submit(func() {
				if limiter != nil {
					_ = limiter.Wait(ctx)
				}
				dispatch(ReplayItem{Event: ev, Launch: time.Now()})
			})
		})
		count++
	}

	return count
}
