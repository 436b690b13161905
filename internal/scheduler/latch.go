package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// CompletionLatch is the terminating barrier shared by every source: the
// scheduler counts down one unit per dispatched work item, and the run
// finishes when either every unit has counted down or Await's timeout
// elapses (spec.md §4.4).
type CompletionLatch struct {
	remaining atomic.Int64
	partial   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewCompletionLatch creates a latch expecting `expected` count-downs. An
// expected count of zero or less resolves the latch immediately.
func NewCompletionLatch(expected int64) *CompletionLatch {
	l := &CompletionLatch{done: make(chan struct{})}
	l.remaining.Store(expected)
	if expected <= 0 {
		close(l.done)
	}
	return l
}

// CountDown records completion of one dispatched unit.
func (l *CompletionLatch) CountDown() {
	if l.remaining.Add(-1) <= 0 {
		l.closeOnce.Do(func() { close(l.done) })
	}
}

// Cancel resolves the latch early and marks the run partial (spec.md §4.4
// cancellation semantics).
func (l *CompletionLatch) Cancel() {
	l.partial.Store(true)
	l.closeOnce.Do(func() { close(l.done) })
}

// Await blocks until the latch resolves (every unit counted down, or
// Cancel was called) or timeout elapses. Returns whether the run ended
// partial.
func (l *CompletionLatch) Await(timeout time.Duration) bool {
	select {
	case <-l.done:
		return l.partial.Load()
	case <-time.After(timeout):
		l.partial.Store(true)
		l.closeOnce.Do(func() { close(l.done) })
		return true
	}
}
