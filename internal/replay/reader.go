// Package replay reads a JSONL trace of recorded production requests and
// drives trace-replay mode: a pre-scan sizes the worker pool to the burst
// the trace implies, then a reader streams events in dispatch order.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amr9/crossloadgen/pkg/models"
)

// ReadAll loads every well-formed event from a JSONL trace file into memory,
// assigning each a monotonically increasing Index. Malformed lines (bad
// JSON, or missing one of the required fields ts/endpoint/delayMs) are
// silently skipped per the trace format's contract.
func ReadAll(path string) ([]models.TraceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	var events []models.TraceEvent
	idx := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, ok := parseLine(line)
		if !ok {
			continue
		}
		ev.Index = idx
		idx++
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}
	return events, nil
}

// Stream opens the trace file and parses it line by line, emitting events
// on the returned channel as they are read (the streaming variant, spec.md
// §4.6). The channel is closed once the file is exhausted. Stream takes no
// context and returns no cancel function, since it only ever performs local
// reads; a caller that stops receiving early leaves the reading goroutine
// blocked on its next send. Malformed lines are silently skipped. Errors during open are returned
// synchronously; errors during scan are sent as a non-nil error on errCh.
func Stream(path string) (<-chan models.TraceEvent, <-chan error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}

	events := make(chan models.TraceEvent, 64)
	errCh := make(chan error, 1)

	go func() {
		defer f.Close()
		defer close(events)
		defer close(errCh)

		idx := 0
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			ev, ok := parseLine(line)
			if !ok {
				continue
			}
			ev.Index = idx
			idx++
			events <- ev
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("read trace file: %w", err)
		}
	}()

	return events, errCh, nil
}

type rawEvent struct {
	TS        *int64  `json:"ts"`
	Endpoint  *string `json:"endpoint"`
	Method    string  `json:"method"`
	UID       string  `json:"userId"`
	DelayMs   *int64  `json:"delayMs"`
	Series    string  `json:"series"`
	PuzzleID  string  `json:"puzzleId"`
	Offset    string  `json:"offset"`
	IsLastReq bool    `json:"isLastReq"`
}

// parseLine parses one JSONL line into a TraceEvent. A line is malformed
// (and skipped) if it isn't valid JSON or is missing ts/endpoint/delayMs.
func parseLine(line []byte) (models.TraceEvent, bool) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return models.TraceEvent{}, false
	}
	if raw.TS == nil || raw.Endpoint == nil || raw.DelayMs == nil {
		return models.TraceEvent{}, false
	}
	method := raw.Method
	if method == "" {
		method = "GET"
	}
	return models.TraceEvent{
		TS:        *raw.TS,
		Endpoint:  *raw.Endpoint,
		Method:    method,
		UID:       raw.UID,
		DelayMs:   *raw.DelayMs,
		Series:    raw.Series,
		PuzzleID:  raw.PuzzleID,
		Offset:    raw.Offset,
		IsLastReq: raw.IsLastReq,
	}, true
}
