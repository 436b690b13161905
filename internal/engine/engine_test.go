package engine

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	log, err := zap.NewDevelopment()
	require.NoError(t, err)
	return log.Sugar()
}

func mustB64(body string) string {
	return base64.StdEncoding.EncodeToString([]byte(body))
}

func newHappyTarget(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/date-picker":
			sub := mustB64(`{"loadToken":"tok-abc"}`)
			fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawsps":%q}</script></body></html>`, sub)
		case "/crossword":
			sub := mustB64(`{"playId":"play-123"}`)
			fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawp":%q}</script></body></html>`, sub)
		case "/postPickerStatus":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":0}`)
		case "/api/v1/plays":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":0}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func baseConfig(baseURL string) models.Config {
	return models.Config{
		BaseURL:  baseURL,
		Series:   "main",
		PuzzleID: "d4725144",
		StateLen: 12,
		Timeout:  2 * time.Second,
		UIDMode:  models.UIDModeFixed,
		FixedUID: "vansh",
		Variant:  models.VariantStandard,
	}
}

func TestRunWaveProducesExpectedRecordCount(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	cfg.RPS = 3
	cfg.Duration = 2

	e, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	results, err := e.RunWave(t.Context())
	require.NoError(t, err)

	assert.Len(t, results.Records, 6)
	assert.Equal(t, 6, results.SuccessCount)
	assert.Len(t, results.Waves, 2)
	assert.False(t, results.Partial)
}

func TestRunWaveWithCircuitBreakerTripsOnFailures(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig(srv.URL)
	cfg.RPS = 2
	cfg.Duration = 3
	cfg.CircuitBreaker = &models.CircuitBreakerConfig{StopIf: "errors > 50%", MinSamples: 1}

	e, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	results, err := e.RunWave(t.Context())
	require.NoError(t, err)

	assert.Less(t, len(results.Records), 6)
}

func TestSaveAndLoadSessionsRoundTrip(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")

	cfg := baseConfig(srv.URL)
	cfg.SaveSessionsPath = path

	e, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	_ = e.exec.Run(t.Context(), "vansh")
	require.NoError(t, e.SaveSessions())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tok-abc")

	cfg2 := baseConfig(srv.URL)
	cfg2.LoadSessionsPath = path
	e2, err := New(cfg2, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, e2.LoadSessions())
}

func TestRunReplayDispatchesAllEvents(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.jsonl")
	trace := `{"ts":0,"endpoint":"/date-picker","delayMs":0,"userId":"u1"}
{"ts":100,"endpoint":"/crossword","delayMs":100,"userId":"u1","puzzleId":"d4725144"}
{"ts":200,"endpoint":"/postPickerStatus","delayMs":100,"method":"POST","userId":"u1"}
`
	require.NoError(t, os.WriteFile(tracePath, []byte(trace), 0o644))

	cfg := baseConfig(srv.URL)
	cfg.ReplayFile = tracePath
	cfg.Speed = 10

	e, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	results, err := e.RunReplay(t.Context())
	require.NoError(t, err)
	assert.Len(t, results.Records, 3)
}

func TestRunReplayStreamingDispatchesAllEvents(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.jsonl")
	trace := `{"ts":0,"endpoint":"/date-picker","delayMs":0,"userId":"u1"}
{"ts":100,"endpoint":"/crossword","delayMs":100,"userId":"u1","puzzleId":"d4725144"}
{"ts":200,"endpoint":"/postPickerStatus","delayMs":100,"method":"POST","userId":"u1"}
`
	require.NoError(t, os.WriteFile(tracePath, []byte(trace), 0o644))

	cfg := baseConfig(srv.URL)
	cfg.ReplayFile = tracePath
	cfg.Speed = 10
	cfg.Streaming = true

	e, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	results, err := e.RunReplay(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, results.TotalThreads)
	assert.Equal(t, 3, results.SuccessCount)
	assert.Len(t, results.Records, 3) // under the reservoir cap, so exact
	assert.Empty(t, results.Waves)
}
