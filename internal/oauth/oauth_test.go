package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, tokenHits *int64, unauthorizedOnce *bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(tokenHits, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		if unauthorizedOnce != nil && *unauthorizedOnce {
			*unauthorizedOnce = false
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestEnsureTokenFetchesOnce(t *testing.T) {
	t.Parallel()
	var hits int64
	srv := newTarget(t, &hits, nil)
	defer srv.Close()

	client := httpclient.New(httpclient.Options{})
	d := New(client, models.OAuthConfig{TokenURL: srv.URL + "/token", ClientID: "c", ClientSecret: "s"})

	token, err := d.EnsureToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	token2, err := d.EnsureToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, token, token2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestEnsureTokenRefetchesAfterExpiry(t *testing.T) {
	t.Parallel()
	var hits int64
	srv := newTarget(t, &hits, nil)
	defer srv.Close()

	client := httpclient.New(httpclient.Options{})
	d := New(client, models.OAuthConfig{TokenURL: srv.URL + "/token", ClientID: "c", ClientSecret: "s"})

	_, err := d.EnsureToken(t.Context())
	require.NoError(t, err)

	d.mu.Lock()
	d.expiresAt = time.Now().Add(-time.Second)
	d.mu.Unlock()

	_, err = d.EnsureToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestDoAttachesBearerToken(t *testing.T) {
	t.Parallel()
	var hits int64
	srv := newTarget(t, &hits, nil)
	defer srv.Close()

	client := httpclient.New(httpclient.Options{})
	d := New(client, models.OAuthConfig{TokenURL: srv.URL + "/token", ClientID: "c", ClientSecret: "s"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/protected", nil)
	require.NoError(t, err)

	resp, err := d.Do(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoRefreshesAndRetriesOn401(t *testing.T) {
	t.Parallel()
	var hits int64
	unauthorizedOnce := true
	srv := newTarget(t, &hits, &unauthorizedOnce)
	defer srv.Close()

	client := httpclient.New(httpclient.Options{})
	d := New(client, models.OAuthConfig{TokenURL: srv.URL + "/token", ClientID: "c", ClientSecret: "s"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/protected", nil)
	require.NoError(t, err)

	resp, err := d.Do(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}
