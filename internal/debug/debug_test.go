package debug

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
)

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

func TestRunSucceedsOnHappyPath(t *testing.T) {
	t.Parallel()
	srv := newHappyTarget(t)
	defer srv.Close()

	cfg := models.Config{
		BaseURL: srv.URL, Series: "main", PuzzleID: "d4725144", StateLen: 12,
		Timeout: 2 * time.Second, Variant: models.VariantStandard,
	}

	err := Run(context.Background(), cfg, "vansh")
	assert.NoError(t, err)
}

func TestRunReturnsErrorWhenFirstStepFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := models.Config{
		BaseURL: srv.URL, Series: "main", PuzzleID: "d4725144", StateLen: 12,
		Timeout: 2 * time.Second, Variant: models.VariantStandard,
	}

	err := Run(context.Background(), cfg, "vansh")
	assert.Error(t, err)
}
