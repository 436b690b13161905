package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireCompletesOnSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":0}`))
	}))
	defer srv.Close()

	c := New(Options{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Do(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":0}`, string(resp.Body))
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))
}

func TestFireReportsNon2xxAsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Options{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Do(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFireReportsUnresolved3xxAsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := New(Options{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Do(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "304")
}

func TestFutureCompletesExactlyOnce(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := c.Fire(ctx, req)
	_, err1 := f.Wait(ctx)
	_, err2 := f.Wait(ctx)
	require.NoError(t, err1)
	require.NoError(t, err2)
}

func TestDecodeBase64JSONRoundTrip(t *testing.T) {
	t.Parallel()

	decoded, err := DecodeBase64JSON("eyJsb2FkVG9rZW4iOiJhYmMxMjMifQ==")
	require.NoError(t, err)
	assert.JSONEq(t, `{"loadToken":"abc123"}`, string(decoded))
}

func TestDecodeBase64JSONRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := DecodeBase64JSON("")
	require.Error(t, err)
}
