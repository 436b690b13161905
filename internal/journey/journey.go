// Package journey executes the scripted four-step crossword-play journey
// against a single logical session (spec.md §4.3).
package journey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/internal/sessionstore"
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/tidwall/gjson"
)

// staticAssetPaths and externalFontAssets are the four fixed resources
// fetched after step 1 in the with-static-assets variant: two tenant-scoped
// paths (under CDNBase) and two external font-library URLs (spec.md §4.3).
var staticAssetPaths = []string{
	"/static/bundle.css",
	"/static/app.js",
}

var externalFontAssets = []string{
	"https://fonts.googleapis.com/css2?family=Roboto",
	"https://fonts.gstatic.com/s/roboto/v30/roboto.woff2",
}

// crosswordAssetPaths are the two tenant-scoped assets fetched after step 3
// in the with-static-assets variant.
var crosswordAssetPaths = []string{
	"/static/crossword.css",
	"/static/crossword.js",
}

// Executor runs journeys against a fixed target and session store.
type Executor struct {
	client  *httpclient.Client
	store   *sessionstore.Store
	baseURL string
	cfg     models.Config
}

// New builds an Executor bound to the given HTTP client and session store.
func New(client *httpclient.Client, store *sessionstore.Store, cfg models.Config) *Executor {
	return &Executor{client: client, store: store, baseURL: cfg.BaseURL, cfg: cfg}
}

// Run executes one journey for uid and returns the aggregated result. No
// retries are performed inside a journey (spec.md §4.3); any step failure
// marks the journey failed and skips the remaining steps, but completed
// steps' latencies are still reported.
func (e *Executor) Run(ctx context.Context, uid string) models.JourneyResult {
	var result models.JourneyResult

	step1, loadToken, pickerURL := e.step1(ctx, uid)
	result.Step1 = step1
	if !step1.Success {
		return result
	}

	step2 := e.step2(ctx, uid, loadToken)
	result.Step2 = step2
	if !step2.Success {
		return result
	}

	step3, playID := e.step3(ctx, uid, loadToken, pickerURL)
	result.Step3 = step3
	if !step3.Success {
		return result
	}

	step4 := e.step4(ctx, uid, loadToken, playID)
	result.Step4 = step4
	result.Success = step4.Success

	return result
}

func (e *Executor) withStaticVariant() bool {
	return e.cfg.Variant == models.VariantStandardPlusStatic
}

// step1 obtains the date-picker's loadToken via the session store: "fetching
// them lazily via the HTTP client when absent" (spec.md §2) means this GET
// IS the store's step A, coalesced across concurrent journeys sharing a
// key, so a journey that wins the race pays the real latency and one that
// doesn't observes a near-instant cache hit. In the with-static-assets
// variant it additionally fetches four static resources whose latencies
// are folded into the step's reported latency.
func (e *Executor) step1(ctx context.Context, uid string) (models.StepResult, string, string) {
	start := time.Now()

	lt := e.store.LoadToken(ctx, uid, e.cfg.Series)
	if !lt.Valid() {
		return fail(start, fmt.Errorf("session-unavailable: %s", lt.Err)), "", ""
	}

	var assets []models.AssetResult
	if e.withStaticVariant() {
		assets = e.fetchAssets(ctx, e.tenantAssetURLs(staticAssetPaths), externalFontAssets)
	}

	end := time.Now()
	latency := end.Sub(start).Milliseconds()
	for _, a := range assets {
		latency += a.LatencyMs
	}

	return models.StepResult{
		Start: start, End: end, LatencyMs: latency, Success: true, Assets: assets,
	}, lt.LoadToken, lt.PickerURL
}

// playStatusPayload is the small JSON body posted in step 2.
type playStatusPayload struct {
	LoadToken string `json:"loadToken"`
	Series    string `json:"series"`
	ID        string `json:"id"`
	UserID    string `json:"userId"`
}

func (e *Executor) step2(ctx context.Context, uid, loadToken string) models.StepResult {
	start := time.Now()

	body, err := json.Marshal(playStatusPayload{
		LoadToken: loadToken, Series: e.cfg.Series, ID: e.cfg.PuzzleID, UserID: uid,
	})
	if err != nil {
		return fail(start, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/postPickerStatus", bytes.NewReader(body))
	if err != nil {
		return fail(start, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return fail(start, err)
	}

	if status := gjson.GetBytes(resp.Body, "status").Int(); status != 0 {
		return fail(start, fmt.Errorf("logic error: postPickerStatus returned status %d", status))
	}

	end := time.Now()
	return models.StepResult{Start: start, End: end, LatencyMs: end.Sub(start).Milliseconds(), Success: true}
}

func (e *Executor) step3(ctx context.Context, uid, loadToken, pickerURL string) (models.StepResult, string) {
	start := time.Now()

	pid := e.store.PlayID(ctx, uid, e.cfg.PuzzleID, e.cfg.Series, loadToken, pickerURL)
	if !pid.Valid() {
		return fail(start, fmt.Errorf("session-unavailable: %s", pid.Err)), ""
	}

	var assets []models.AssetResult
	if e.withStaticVariant() {
		assets = e.fetchAssets(ctx, e.tenantAssetURLs(crosswordAssetPaths), nil)
	}

	end := time.Now()
	latency := end.Sub(start).Milliseconds()
	for _, a := range assets {
		latency += a.LatencyMs
	}

	return models.StepResult{
		Start: start, End: end, LatencyMs: latency, Success: true, Assets: assets,
	}, pid.PlayID
}

// playPostPayload is the fixed field list posted at each of the ten step-4
// iterations (spec.md §6).
type playPostPayload struct {
	LoadToken               string `json:"loadToken"`
	UpdatePlayTable         bool   `json:"updatePlayTable"`
	UpdateLoadTable         bool   `json:"updateLoadTable"`
	Series                  string `json:"series"`
	ID                      string `json:"id"`
	PlayID                  string `json:"playId"`
	UserID                  string `json:"userId"`
	Browser                 string `json:"browser"`
	StreakLength            int    `json:"streakLength"`
	GetProgressFromBackend  bool   `json:"getProgressFromBackend"`
	FromPicker              string `json:"fromPicker"`
	InContestMode           bool   `json:"inContestMode"`
	Timestamp               int64  `json:"timestamp"`
	UpdatedTimestamp        int64  `json:"updatedTimestamp"`
	PlayState               int    `json:"playState"`
	TimeTaken               int64  `json:"timeTaken"`
	Score                   int    `json:"score"`
	TimeOnPage              int64  `json:"timeOnPage"`
	NPrints                 int    `json:"nPrints"`
	NPrintsEmpty            int    `json:"nPrintsEmpty"`
	NPrintsFilled           int    `json:"nPrintsFilled"`
	NPrintsSol              int    `json:"nPrintsSol"`
	NClearClicks            int    `json:"nClearClicks"`
	NSettingsClicks         int    `json:"nSettingsClicks"`
	NHelpClicks             int    `json:"nHelpClicks"`
	NResizes                int    `json:"nResizes"`
	NExceptions             int    `json:"nExceptions"`
	PostScoreReason         string `json:"postScoreReason"`
	PrimaryState            string `json:"primaryState"`
	SecondaryState          string `json:"secondaryState"`
}

// playStates is the fixed play-state sequence for the ten step-4 iterations
// (spec.md §4.3, invariant 5).
var playStates = [10]int{1, 2, 2, 2, 2, 2, 2, 2, 2, 4}

func (e *Executor) step4(ctx context.Context, uid, loadToken, playID string) models.StepResult {
	stepStart := time.Now()
	iterations := make([]models.IterationResult, 0, 10)

	vector := NewStateVector(e.cfg.StateLen)
	journeyStart := time.Now()

	for i, playState := range playStates {
		switch {
		case i == 0:
			// vector already at its initial fill-ratio-0.1 state
		case i == len(playStates)-1:
			vector = vector.Complete()
		default:
			vector = vector.Mutate()
		}

		iterStart := time.Now()
		reason := "AUTOSAVE"
		if playState == 4 {
			reason = "BLUR"
		}

		payload := playPostPayload{
			LoadToken: loadToken, UpdatePlayTable: true, UpdateLoadTable: false,
			Series: e.cfg.Series, ID: e.cfg.PuzzleID, PlayID: playID, UserID: uid,
			Browser: "crossloadgen/1.0", StreakLength: 0, GetProgressFromBackend: true,
			FromPicker: "date-picker", InContestMode: false,
			Timestamp: iterStart.UnixMilli(), UpdatedTimestamp: iterStart.UnixMilli(),
			PlayState: playState, TimeTaken: time.Since(journeyStart).Milliseconds(), Score: 0,
			TimeOnPage: time.Since(journeyStart).Milliseconds(),
			PostScoreReason: reason,
			PrimaryState:    vector.Primary, SecondaryState: vector.Secondary,
		}

		body, err := json.Marshal(payload)
		if err != nil {
			iterations = append(iterations, failIter(i+1, playState, iterStart, err))
			return stepFromIterations(stepStart, iterations)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/plays", bytes.NewReader(body))
		if err != nil {
			iterations = append(iterations, failIter(i+1, playState, iterStart, err))
			return stepFromIterations(stepStart, iterations)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(ctx, req)
		if err != nil {
			iterations = append(iterations, failIter(i+1, playState, iterStart, err))
			return stepFromIterations(stepStart, iterations)
		}

		if status := gjson.GetBytes(resp.Body, "status").Int(); status != 0 {
			iterations = append(iterations, failIter(i+1, playState, iterStart,
				fmt.Errorf("logic error: play post returned status %d", status)))
			return stepFromIterations(stepStart, iterations)
		}

		iterations = append(iterations, models.IterationResult{
			Iteration: i + 1, PlayState: playState,
			LatencyMs: time.Since(iterStart).Milliseconds(), Success: true,
		})
	}

	return stepFromIterations(stepStart, iterations)
}

func stepFromIterations(start time.Time, iterations []models.IterationResult) models.StepResult {
	end := time.Now()
	success := len(iterations) == len(playStates)
	var totalLatency int64
	for _, it := range iterations {
		totalLatency += it.LatencyMs
		if !it.Success {
			success = false
		}
	}
	return models.StepResult{
		Start: start, End: end, LatencyMs: totalLatency, Success: success, Iterations: iterations,
	}
}

func failIter(iteration, playState int, start time.Time, err error) models.IterationResult {
	return models.IterationResult{
		Iteration: iteration, PlayState: playState,
		LatencyMs: time.Since(start).Milliseconds(), Success: false, Error: err.Error(),
	}
}

func fail(start time.Time, err error) models.StepResult {
	end := time.Now()
	return models.StepResult{
		Start: start, End: end, LatencyMs: end.Sub(start).Milliseconds(), Success: false, Error: err.Error(),
	}
}

func (e *Executor) tenantAssetURLs(paths []string) []string {
	prefix := e.cfg.CDNBase
	if prefix == "" {
		prefix = e.baseURL
	}
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = prefix + p
	}
	return urls
}

// fetchAssets issues GETs for every URL concurrently; failures are
// recorded but never abort the step (Open Question (b) decision,
// DESIGN.md).
func (e *Executor) fetchAssets(ctx context.Context, urlSets ...[]string) []models.AssetResult {
	var all []string
	for _, s := range urlSets {
		all = append(all, s...)
	}

	results := make([]models.AssetResult, len(all))
	var wg sync.WaitGroup
	for i, u := range all {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				results[i] = models.AssetResult{URL: u, Success: false, Err: err.Error()}
				return
			}
			resp, err := e.client.Do(ctx, req)
			latency := time.Since(start).Milliseconds()
			if err != nil {
				results[i] = models.AssetResult{URL: u, LatencyMs: latency, Success: false, Err: err.Error()}
				return
			}
			_ = resp
			results[i] = models.AssetResult{URL: u, LatencyMs: latency, Success: true}
		}()
	}
	wg.Wait()

	return results
}
