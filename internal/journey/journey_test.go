package journey

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"context"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/internal/sessionstore"
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustB64(json string) string {
	return base64.StdEncoding.EncodeToString([]byte(json))
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

func newExecutor(t *testing.T, baseURL string, variant models.JourneyVariant) *Executor {
	t.Helper()
	client := httpclient.New(httpclient.Options{})
	store := sessionstore.New(client, baseURL)
	cfg := models.Config{
		BaseURL: baseURL, Series: "main", PuzzleID: "d4725144", StateLen: 185, Variant: variant,
	}
	return New(client, store, cfg)
}

func TestRunSingleJourneySucceeds(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	exec := newExecutor(t, srv.URL, models.VariantStandard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := exec.Run(ctx, "vansh")

	require.True(t, result.Success)
	require.True(t, result.Step1.Success)
	require.True(t, result.Step2.Success)
	require.True(t, result.Step3.Success)
	require.True(t, result.Step4.Success)

	require.Len(t, result.Step4.Iterations, 10)
	expectedStates := []int{1, 2, 2, 2, 2, 2, 2, 2, 2, 4}
	for i, it := range result.Step4.Iterations {
		assert.Equal(t, expectedStates[i], it.PlayState)
		assert.True(t, it.Success)
	}
}

func TestRunJourneyMonotonicity(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	exec := newExecutor(t, srv.URL, models.VariantStandard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := exec.Run(ctx, "vansh")
	require.True(t, result.Success)

	assert.False(t, result.Step1.End.After(result.Step2.Start))
	assert.False(t, result.Step2.Start.After(result.Step2.End))
	assert.False(t, result.Step2.End.After(result.Step3.Start))
	assert.False(t, result.Step3.Start.After(result.Step3.End))
	assert.False(t, result.Step3.End.After(result.Step4.Start))
	assert.False(t, result.Step4.Start.After(result.Step4.End))

	for i := 1; i < len(result.Step4.Iterations); i++ {
		assert.GreaterOrEqual(t, result.Step4.Iterations[i].Iteration, result.Step4.Iterations[i-1].Iteration)
	}
}

func TestRunJourneyFailsOnPickerStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/date-picker":
			sub := mustB64(`{"loadToken":"tok-abc"}`)
			fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawsps":%q}</script></body></html>`, sub)
		case "/postPickerStatus":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	exec := newExecutor(t, srv.URL, models.VariantStandard)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := exec.Run(ctx, "vansh")
	require.False(t, result.Success)
	require.True(t, result.Step1.Success)
	require.False(t, result.Step2.Success)
	assert.Contains(t, result.Step2.Error, "500")
	assert.True(t, result.Step3.LatencyMs == 0 && result.Step3.Start.IsZero())
}

func TestRunJourneyWithStaticAssetsVariant(t *testing.T) {
	t.Parallel()

	var assetHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/date-picker", func(w http.ResponseWriter, r *http.Request) {
		sub := mustB64(`{"loadToken":"tok-abc"}`)
		fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawsps":%q}</script></body></html>`, sub)
	})
	mux.HandleFunc("/crossword", func(w http.ResponseWriter, r *http.Request) {
		sub := mustB64(`{"playId":"play-123"}`)
		fmt.Fprintf(w, `<html><body><script id="params" type="application/json">{"rawp":%q}</script></body></html>`, sub)
	})
	mux.HandleFunc("/postPickerStatus", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":0}`)
	})
	mux.HandleFunc("/api/v1/plays", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":0}`)
	})
	mux.HandleFunc("/static/", func(w http.ResponseWriter, r *http.Request) {
		assetHits++
		io.WriteString(w, "ok")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Avoid reaching the real font CDN in tests: point the external font
	// asset list at the mock target for the duration of this test.
	originalFontAssets := externalFontAssets
	externalFontAssets = []string{srv.URL + "/static/font1.woff2", srv.URL + "/static/font2.woff2"}
	defer func() { externalFontAssets = originalFontAssets }()

	exec := newExecutor(t, srv.URL, models.VariantStandardPlusStatic)
	exec.cfg.CDNBase = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := exec.Run(ctx, "vansh")
	require.True(t, result.Success)
	assert.Len(t, result.Step1.Assets, 4) // 2 tenant + 2 (stubbed) external font assets
	assert.Len(t, result.Step3.Assets, 2)
	assert.Equal(t, 6, assetHits) // step1's 4 assets + step3's 2 tenant assets, all routed to /static/
}
