// Package sessionstore derives and memoizes per-(user, puzzle) session
// tokens (spec.md §4.2). It is process-wide and thread-safe: at most one
// fetch per key is ever in flight, and once resolved a key's value is final
// for the store's lifetime.
//
// Step A (load token) and step B (play id) are each memoized independently
// so that the journey executor can attribute their latency to the
// journey's own step 1 (date-picker) and step 3 (crossword) without
// duplicating the HTTP calls itself: "fetching them lazily via the HTTP
// client when absent" (spec.md §2) means these *are* the journey's step 1
// and step 3 network calls, coalesced across concurrent journeys that
// share a key.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

type loadKey struct{ uid, series string }

func (k loadKey) String() string { return k.series + "/" + k.uid }

type playKey struct{ uid, puzzleID, series string }

func (k playKey) String() string { return k.series + "/" + k.puzzleID + "/" + k.uid }

// LoadTokenResult is the memoized outcome of step A.
type LoadTokenResult struct {
	LoadToken  string
	PickerURL  string // the request URL used, threaded into step B's src= param
	Err        string
}

func (r LoadTokenResult) Valid() bool { return r.Err == "" && r.LoadToken != "" }

// PlayIDResult is the memoized outcome of step B.
type PlayIDResult struct {
	PlayID string
	Err    string
}

func (r PlayIDResult) Valid() bool { return r.Err == "" }

// Store is the session memoization table. Zero value is not usable; use New.
type Store struct {
	client  *httpclient.Client
	baseURL string

	loadGroup singleflight.Group
	playGroup singleflight.Group

	mu         sync.RWMutex
	loadTokens map[loadKey]LoadTokenResult
	playIDs    map[playKey]PlayIDResult
}

// New builds a Store bound to the given target base URL, issuing its
// derivation requests through client.
func New(client *httpclient.Client, baseURL string) *Store {
	return &Store{
		client:     client,
		baseURL:    baseURL,
		loadTokens: make(map[loadKey]LoadTokenResult),
		playIDs:    make(map[playKey]PlayIDResult),
	}
}

// LoadToken returns the step-A result for (uid, series), fetching it via
// the target if not already cached. Concurrent callers for the same key
// observe a single underlying GET /date-picker (invariant 1).
func (s *Store) LoadToken(ctx context.Context, uid, series string) LoadTokenResult {
	k := loadKey{uid: uid, series: series}

	s.mu.RLock()
	if r, ok := s.loadTokens[k]; ok {
		s.mu.RUnlock()
		return r
	}
	s.mu.RUnlock()

	v, _, _ := s.loadGroup.Do(k.String(), func() (interface{}, error) {
		s.mu.RLock()
		if r, ok := s.loadTokens[k]; ok {
			s.mu.RUnlock()
			return r, nil
		}
		s.mu.RUnlock()

		r := s.fetchLoadToken(ctx, uid, series)

		s.mu.Lock()
		s.loadTokens[k] = r
		s.mu.Unlock()

		return r, nil
	})

	return v.(LoadTokenResult)
}

// PlayID returns the step-B result for (uid, puzzleID, series), fetching it
// via the target if not already cached. Concurrent callers for the same key
// observe a single underlying GET /crossword (invariant 1).
func (s *Store) PlayID(ctx context.Context, uid, puzzleID, series, loadToken, pickerURL string) PlayIDResult {
	k := playKey{uid: uid, puzzleID: puzzleID, series: series}

	s.mu.RLock()
	if r, ok := s.playIDs[k]; ok {
		s.mu.RUnlock()
		return r
	}
	s.mu.RUnlock()

	v, _, _ := s.playGroup.Do(k.String(), func() (interface{}, error) {
		s.mu.RLock()
		if r, ok := s.playIDs[k]; ok {
			s.mu.RUnlock()
			return r, nil
		}
		s.mu.RUnlock()

		r := s.fetchPlayID(ctx, uid, puzzleID, series, loadToken, pickerURL)

		s.mu.Lock()
		s.playIDs[k] = r
		s.mu.Unlock()

		return r, nil
	})

	return v.(PlayIDResult)
}

func (s *Store) fetchLoadToken(ctx context.Context, uid, series string) LoadTokenResult {
	requestURL := fmt.Sprintf("%s/date-picker?set=%s&uid=%s", s.baseURL, series, uid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return LoadTokenResult{Err: fmt.Sprintf("transport error: %v", err)}
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return LoadTokenResult{Err: err.Error()}
	}

	paramsJSON, err := httpclient.ExtractParamsScript(resp.Body)
	if err != nil {
		return LoadTokenResult{Err: err.Error()}
	}

	decoded, err := httpclient.DecodeBase64JSON(gjson.Get(paramsJSON, "rawsps").String())
	if err != nil {
		return LoadTokenResult{Err: err.Error()}
	}

	loadToken := gjson.GetBytes(decoded, "loadToken").String()
	if loadToken == "" {
		return LoadTokenResult{Err: "parse error: missing loadToken field"}
	}

	return LoadTokenResult{LoadToken: loadToken, PickerURL: requestURL}
}

func (s *Store) fetchPlayID(ctx context.Context, uid, puzzleID, series, loadToken, pickerURL string) PlayIDResult {
	requestURL := fmt.Sprintf("%s/crossword?id=%s&set=%s&picker=date-picker&src=%s&uid=%s&loadToken=%s",
		s.baseURL, puzzleID, series, pickerURL, uid, loadToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return PlayIDResult{Err: fmt.Sprintf("transport error: %v", err)}
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return PlayIDResult{Err: err.Error()}
	}

	paramsJSON, err := httpclient.ExtractParamsScript(resp.Body)
	if err != nil {
		return PlayIDResult{Err: err.Error()}
	}

	rawp := gjson.Get(paramsJSON, "rawp").String()
	if rawp == "" {
		return PlayIDResult{} // playId absent is tolerated (spec.md §4.2)
	}

	decoded, err := httpclient.DecodeBase64JSON(rawp)
	if err != nil {
		return PlayIDResult{Err: err.Error()}
	}

	return PlayIDResult{PlayID: gjson.GetBytes(decoded, "playId").String()}
}

// GetOrCreate composes LoadToken and PlayID into a single SessionTokens
// value, for callers (bulk pre-warm, session-cache persistence) that don't
// need per-step latency attribution.
func (s *Store) GetOrCreate(ctx context.Context, uid, puzzleID, series string) models.SessionTokens {
	lt := s.LoadToken(ctx, uid, series)
	if !lt.Valid() {
		return models.SessionTokens{Err: lt.Err}
	}

	pid := s.PlayID(ctx, uid, puzzleID, series, lt.LoadToken, lt.PickerURL)
	if !pid.Valid() {
		return models.SessionTokens{Err: pid.Err}
	}

	return models.SessionTokens{LoadToken: lt.LoadToken, PlayID: pid.PlayID}
}

// BulkWarm runs GetOrCreate for every key on a bounded worker pool of the
// given parallelism, useful for pre-populating the store before a wave run.
// ratePerSecond, if positive, smooths dispatch with a token-bucket limiter
// so a large pre-warm batch doesn't itself look like a burst attack against
// the target; zero or negative disables smoothing.
func (s *Store) BulkWarm(ctx context.Context, keys []Key, parallelism int, ratePerSecond float64) {
	if parallelism <= 0 {
		parallelism = 1
	}

	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for _, k := range keys {
		k := k
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if limiter != nil {
				_ = limiter.Wait(ctx)
			}
			s.GetOrCreate(ctx, k.UID, k.PuzzleID, k.Series)
		}()
	}

	wg.Wait()
}

// Key identifies a session to pre-warm.
type Key struct {
	UID      string
	PuzzleID string
	Series   string
}

// onDiskSession is the JSON shape persisted by SaveToFile/LoadFromFile,
// keyed by uid (spec.md §6).
type onDiskSession struct {
	LoadToken string `json:"loadToken"`
	PlayID    string `json:"playId"`
}

// SaveToFile serializes every valid session in the store, keyed by uid.
func (s *Store) SaveToFile(path string) error {
	s.mu.RLock()
	out := make(map[string]onDiskSession, len(s.loadTokens))
	for lk, lt := range s.loadTokens {
		if !lt.Valid() {
			continue
		}
		entry := onDiskSession{LoadToken: lt.LoadToken}
		for pk, pid := range s.playIDs {
			if pk.uid == lk.uid && pk.series == lk.series && pid.Valid() {
				entry.PlayID = pid.PlayID
				break
			}
		}
		out[lk.uid] = entry
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session cache: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile populates the store from a previously saved session cache
// for the given puzzle/series pair, without contacting the target. A
// missing file is not an error (spec.md §6).
func (s *Store) LoadFromFile(path, puzzleID, series string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session cache: %w", err)
	}

	var in map[string]onDiskSession
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to parse session cache: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, v := range in {
		s.loadTokens[loadKey{uid: uid, series: series}] = LoadTokenResult{LoadToken: v.LoadToken}
		s.playIDs[playKey{uid: uid, puzzleID: puzzleID, series: series}] = PlayIDResult{PlayID: v.PlayID}
	}
	return nil
}
