package sessionstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustB64(json string) string {
	return base64.StdEncoding.EncodeToString([]byte(json))
}

func newFakeTarget(t *testing.T, datePickerHits, crosswordHits *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/date-picker":
			atomic.AddInt64(datePickerHits, 1)
			sub := mustB64(`{"loadToken":"tok-abc"}`)
			fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawsps":%q}</script></body></html>`, sub)
		case r.URL.Path == "/crossword":
			atomic.AddInt64(crosswordHits, 1)
			sub := mustB64(`{"playId":"play-123"}`)
			fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawp":%q}</script></body></html>`, sub)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGetOrCreateDerivesSession(t *testing.T) {
	t.Parallel()

	var pickerHits, crosswordHits int64
	srv := newFakeTarget(t, &pickerHits, &crosswordHits)
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok := store.GetOrCreate(ctx, "vansh", "d4725144", "main")
	require.True(t, tok.Valid())
	assert.Equal(t, "tok-abc", tok.LoadToken)
	assert.Equal(t, "play-123", tok.PlayID)
	assert.Equal(t, int64(1), pickerHits)
	assert.Equal(t, int64(1), crosswordHits)
}

func TestGetOrCreateSingleFlightUnderConcurrency(t *testing.T) {
	t.Parallel()

	var pickerHits, crosswordHits int64
	srv := newFakeTarget(t, &pickerHits, &crosswordHits)
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := store.GetOrCreate(ctx, "vansh", "d4725144", "main")
			assert.True(t, tok.Valid())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), pickerHits, "date-picker should be fetched exactly once")
	assert.Equal(t, int64(1), crosswordHits, "crossword should be fetched exactly once")
}

func TestGetOrCreateMemoizesFailure(t *testing.T) {
	t.Parallel()

	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok1 := store.GetOrCreate(ctx, "vansh", "d4725144", "main")
	tok2 := store.GetOrCreate(ctx, "vansh", "d4725144", "main")

	assert.False(t, tok1.Valid())
	assert.Equal(t, tok1.Err, tok2.Err)
	assert.Equal(t, int64(1), hits, "failed derivation must not be retried")
}

func TestSaveLoadFromFileRoundTrip(t *testing.T) {
	t.Parallel()

	var pickerHits, crosswordHits int64
	srv := newFakeTarget(t, &pickerHits, &crosswordHits)
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store.GetOrCreate(ctx, "vansh", "d4725144", "main")

	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, store.SaveToFile(path))

	restored := New(httpclient.New(httpclient.Options{}), srv.URL)
	require.NoError(t, restored.LoadFromFile(path, "d4725144", "main"))

	tok := restored.GetOrCreate(ctx, "vansh", "d4725144", "main")
	assert.True(t, tok.Valid())
	assert.Equal(t, "tok-abc", tok.LoadToken)
	assert.Equal(t, int64(1), pickerHits, "restoring from file must not contact the target again")
}

func TestLoadFromFileMissingFileIsNotError(t *testing.T) {
	t.Parallel()

	store := New(httpclient.New(httpclient.Options{}), "http://example.invalid")
	err := store.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"), "p", "s")
	require.NoError(t, err)
}

func TestBulkWarmPopulatesAllKeys(t *testing.T) {
	t.Parallel()

	var pickerHits, crosswordHits int64
	srv := newFakeTarget(t, &pickerHits, &crosswordHits)
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	keys := []Key{
		{UID: "a", PuzzleID: "p1", Series: "main"},
		{UID: "b", PuzzleID: "p1", Series: "main"},
		{UID: "c", PuzzleID: "p1", Series: "main"},
	}
	store.BulkWarm(ctx, keys, 2, 0)

	for _, k := range keys {
		tok := store.GetOrCreate(ctx, k.UID, k.PuzzleID, k.Series)
		assert.True(t, tok.Valid())
	}
	assert.Equal(t, int64(3), pickerHits)
}

func TestBulkWarmRespectsRateLimit(t *testing.T) {
	t.Parallel()

	var pickerHits, crosswordHits int64
	srv := newFakeTarget(t, &pickerHits, &crosswordHits)
	defer srv.Close()

	store := New(httpclient.New(httpclient.Options{}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	keys := []Key{
		{UID: "x", PuzzleID: "p1", Series: "main"},
		{UID: "y", PuzzleID: "p1", Series: "main"},
	}

	start := time.Now()
	store.BulkWarm(ctx, keys, 2, 1) // 1 req/sec should force the second fetch to wait
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
}
