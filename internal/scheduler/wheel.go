// Package scheduler delivers work units (journey invocations or replay
// events) to workers at the correct wall-clock offsets (spec.md §4.4, §5).
package scheduler

import "time"

// Wheel is a lightweight fire-and-forget timer: Schedule arranges for task
// to run after delay on its own goroutine, never blocking the caller or any
// other scheduled task. The wheel itself never touches I/O; every fired
// task hands off immediately to a worker pool (spec.md §5).
type Wheel struct{}

// NewWheel builds a Wheel. It carries no state of its own.
func NewWheel() *Wheel { return &Wheel{} }

// Schedule runs task after delay. A non-positive delay fires immediately
// on a fresh goroutine.
func (w *Wheel) Schedule(delay time.Duration, task func()) {
	if delay <= 0 {
		go task()
		return
	}
	time.AfterFunc(delay, task)
}
