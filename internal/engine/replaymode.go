package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amr9/crossloadgen/internal/replay"
	"github.com/amr9/crossloadgen/internal/scheduler"
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/tidwall/gjson"
)

// RunReplay drives trace-replay mode: a recorded JSONL trace is reissued
// against the target, scaled in time by Speed, with per-user session state
// reconstructed on the fly via the shared session store (spec.md §4.4).
// When Config.Streaming is set, the trace is never loaded into memory as a
// whole (spec.md §4.6): it is scanned once to size the worker pool and the
// completion barrier, then re-streamed line by line for dispatch, with the
// aggregator keeping only a bounded reservoir of per-event detail.
func (e *Engine) RunReplay(ctx context.Context) (models.Results, error) {
	if e.cfg.Streaming {
		return e.runReplayStreaming(ctx)
	}
	return e.runReplayBuffered(ctx)
}

func (e *Engine) runReplayBuffered(ctx context.Context) (models.Results, error) {
	events, err := replay.ReadAll(e.cfg.ReplayFile)
	if err != nil {
		return models.Results{}, fmt.Errorf("open replay trace: %w", err)
	}

	poolSize := replay.PreScan(events, e.cfg.Speed, 4)
	e.log.Infow("replay pool sized from pre-scan", "pool_size", poolSize, "event_count", len(events))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wheel := scheduler.NewWheel()
	pool := scheduler.NewPool(poolSize)
	defer pool.Close()

	latch := scheduler.NewCompletionLatch(int64(len(events)))

	t0 := time.Now()
	ch := make(chan models.TraceEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)

	src := scheduler.ReplaySource{Speed: e.cfg.Speed}
	handlers := e.replayHandlers()

	scheduled := src.Run(runCtx, wheel, pool, t0, ch, func(item scheduler.ReplayItem) {
		e.runOneReplayEvent(runCtx, item, handlers, latch, cancel)
	})
	e.log.Infow("replay events scheduled", "count", scheduled)

	margin := safetyMargin(e.cfg.Timeout)
	expectedDuration := expectedReplayDuration(events, e.cfg.Speed)
	partial := latch.Await(expectedDuration + margin)
	if partial {
		e.log.Warnw("replay run ended partial", "reason", "completion latch did not drain in time")
	}

	totalTimeMs := time.Since(t0).Milliseconds()
	results := e.agg.Finalize(e.cfg.Title, e.resultsConfig(), totalTimeMs, partial)
	results.Timestamp = runTimestamp()
	return results, nil
}

// runReplayStreaming is the spec.md §4.6 streaming variant: the trace file
// is read twice, never buffered whole. The first pass sizes the worker pool
// and the completion latch the same way PreScan does for the buffered
// variant, just incrementally; the second re-opens the file and feeds the
// scheduler directly off the channel Stream produces.
func (e *Engine) runReplayStreaming(ctx context.Context) (models.Results, error) {
	prescanEvents, prescanErrCh, err := replay.Stream(e.cfg.ReplayFile)
	if err != nil {
		return models.Results{}, fmt.Errorf("open replay trace: %w", err)
	}
	poolSize, eventCount, totalDelayMs := replay.StreamingPreScan(prescanEvents, e.cfg.Speed, 4)
	if err := <-prescanErrCh; err != nil {
		return models.Results{}, fmt.Errorf("pre-scan replay trace: %w", err)
	}
	e.log.Infow("streaming replay pool sized from pre-scan", "pool_size", poolSize, "event_count", eventCount)

	dispatchEvents, dispatchErrCh, err := replay.Stream(e.cfg.ReplayFile)
	if err != nil {
		return models.Results{}, fmt.Errorf("reopen replay trace: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wheel := scheduler.NewWheel()
	pool := scheduler.NewPool(poolSize)
	defer pool.Close()

	latch := scheduler.NewCompletionLatch(eventCount)

	t0 := time.Now()
	src := scheduler.ReplaySource{Speed: e.cfg.Speed}
	handlers := e.replayHandlers()

	scheduled := src.Run(runCtx, wheel, pool, t0, dispatchEvents, func(item scheduler.ReplayItem) {
		e.runOneReplayEvent(runCtx, item, handlers, latch, cancel)
	})
	e.log.Infow("streaming replay events scheduled", "count", scheduled)

	speed := e.cfg.Speed
	if speed <= 0 {
		speed = 1
	}
	margin := safetyMargin(e.cfg.Timeout)
	expectedDuration := time.Duration(float64(totalDelayMs)/speed) * time.Millisecond
	partial := latch.Await(expectedDuration + margin)
	if partial {
		e.log.Warnw("streaming replay run ended partial", "reason", "completion latch did not drain in time")
	}
	if err := <-dispatchErrCh; err != nil {
		e.log.Warnw("streaming replay dispatch pass reported a read error", "error", err)
	}

	totalTimeMs := time.Since(t0).Milliseconds()
	results := e.agg.Finalize(e.cfg.Title, e.resultsConfig(), totalTimeMs, partial)
	results.Timestamp = runTimestamp()
	return results, nil
}

func (e *Engine) runOneReplayEvent(ctx context.Context, item scheduler.ReplayItem, handlers replay.Handlers, latch *scheduler.CompletionLatch, cancel context.CancelFunc) {
	defer latch.CountDown()

	start := time.Now()
	err := replay.Dispatch(ctx, handlers, item.Event)
	end := time.Now()

	success := err == nil
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	rec := models.CompletionRecord{
		Wave:      item.Event.Index,
		Thread:    0,
		UID:       item.Event.UID,
		Launch:    item.Launch,
		Completed: end,
		Result: models.JourneyResult{
			Success: success,
			Step1: models.StepResult{
				Start:     start,
				End:       end,
				LatencyMs: end.Sub(start).Milliseconds(),
				Success:   success,
				Error:     errMsg,
			},
		},
	}

	if e.record(rec) {
		e.log.Warnw("circuit breaker tripped during replay, cancelling", "reason", e.breaker.Reason())
		cancel()
		latch.Cancel()
	}
}

// replayHandlers binds the five known endpoint/method pairs to reissued
// requests against the target, reusing the shared session store so
// repeated events for the same user coalesce onto one underlying fetch
// (spec.md §9's dynamic-dispatch closed sum).
func (e *Engine) replayHandlers() replay.Handlers {
	return replay.Handlers{
		DatePicker: func(ctx context.Context, ev models.TraceEvent) error {
			series := seriesOrDefault(ev.Series, e.cfg.Series)
			res := e.store.LoadToken(ctx, ev.UID, series)
			if !res.Valid() {
				return fmt.Errorf("session-unavailable: %s", res.Err)
			}
			return nil
		},
		Crossword: func(ctx context.Context, ev models.TraceEvent) error {
			series := seriesOrDefault(ev.Series, e.cfg.Series)
			puzzleID := puzzleOrDefault(ev.PuzzleID, e.cfg.PuzzleID)
			lt := e.store.LoadToken(ctx, ev.UID, series)
			if !lt.Valid() {
				return fmt.Errorf("session-unavailable: %s", lt.Err)
			}
			pid := e.store.PlayID(ctx, ev.UID, puzzleID, series, lt.LoadToken, lt.PickerURL)
			if !pid.Valid() {
				return fmt.Errorf("session-unavailable: %s", pid.Err)
			}
			return nil
		},
		PostPickerStatus: func(ctx context.Context, ev models.TraceEvent) error {
			series := seriesOrDefault(ev.Series, e.cfg.Series)
			puzzleID := puzzleOrDefault(ev.PuzzleID, e.cfg.PuzzleID)
			lt := e.store.LoadToken(ctx, ev.UID, series)
			if !lt.Valid() {
				return fmt.Errorf("session-unavailable: %s", lt.Err)
			}
			return e.postJSON(ctx, "/postPickerStatus", map[string]any{
				"loadToken": lt.LoadToken,
				"series":    series,
				"id":        puzzleID,
				"userId":    ev.UID,
			})
		},
		Plays: func(ctx context.Context, ev models.TraceEvent) error {
			series := seriesOrDefault(ev.Series, e.cfg.Series)
			puzzleID := puzzleOrDefault(ev.PuzzleID, e.cfg.PuzzleID)
			lt := e.store.LoadToken(ctx, ev.UID, series)
			if !lt.Valid() {
				return fmt.Errorf("session-unavailable: %s", lt.Err)
			}
			pid := e.store.PlayID(ctx, ev.UID, puzzleID, series, lt.LoadToken, lt.PickerURL)
			return e.postJSON(ctx, "/api/v1/plays", map[string]any{
				"loadToken": lt.LoadToken,
				"series":    series,
				"id":        puzzleID,
				"playId":    pid.PlayID,
				"userId":    ev.UID,
			})
		},
		Puzzles: func(ctx context.Context, ev models.TraceEvent) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/api/v1/puzzles", nil)
			if err != nil {
				return fmt.Errorf("transport error: %w", err)
			}
			// The authenticated-tenant variant routes its calls through the
			// bearer-token decorator instead of the bare client (spec.md §9).
			if e.auth != nil {
				_, err = e.auth.Do(ctx, req)
				return err
			}
			_, err = e.client.Do(ctx, req)
			return err
		},
	}
}

func (e *Engine) postJSON(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return err
	}
	if status := gjson.GetBytes(resp.Body, "status"); status.Exists() && status.Int() != 0 {
		return fmt.Errorf("logic: %s returned status %d", path, status.Int())
	}
	return nil
}

func seriesOrDefault(fromEvent, fallback string) string {
	if fromEvent != "" {
		return fromEvent
	}
	return fallback
}

func puzzleOrDefault(fromEvent, fallback string) string {
	if fromEvent != "" {
		return fromEvent
	}
	return fallback
}

// expectedReplayDuration estimates how long a replay's dispatch schedule
// spans, for sizing the terminating barrier's timeout.
func expectedReplayDuration(events []models.TraceEvent, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	var cumulativeMs int64
	for _, ev := range events {
		cumulativeMs += ev.DelayMs
	}
	return time.Duration(float64(cumulativeMs)/speed) * time.Millisecond
}
