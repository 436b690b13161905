// Package oauth is the authenticated-tenant variant: a decorator around
// internal/httpclient that attaches a client-credentials bearer token to
// every outgoing request, rather than a rewrite of the journey executor
// (spec.md §9).
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/pkg/models"
)

const (
	tokenLifetime = 60 * time.Minute
	safetyMargin  = 5 * time.Minute
	cachedFor     = tokenLifetime - safetyMargin // 55 minutes
)

// Decorator wraps an httpclient.Client, attaching a cached bearer token to
// every request it forwards and transparently refreshing on expiry or a
// 401 response (retried at most once with the fresh token).
type Decorator struct {
	client *httpclient.Client
	cfg    models.OAuthConfig

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New creates a Decorator. It does not fetch a token eagerly; the first
// call to Do or EnsureToken performs the initial fetch.
func New(client *httpclient.Client, cfg models.OAuthConfig) *Decorator {
	return &Decorator{client: client, cfg: cfg}
}

// EnsureToken returns a currently-valid bearer token, fetching or
// refreshing it under lock if the cached one is missing or within the
// safety margin of expiry.
func (d *Decorator) EnsureToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureTokenLocked(ctx)
}

func (d *Decorator) ensureTokenLocked(ctx context.Context) (string, error) {
	if d.token != "" && time.Now().Before(d.expiresAt) {
		return d.token, nil
	}
	token, err := d.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	d.token = token
	d.expiresAt = time.Now().Add(cachedFor)
	return d.token, nil
}

// invalidateAndRefresh forces a fresh fetch, used after an observed 401.
func (d *Decorator) invalidateAndRefresh(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = ""
	return d.ensureTokenLocked(ctx)
}

func (d *Decorator) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", d.cfg.ClientID)
	form.Set("client_secret", d.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetch oauth token: %w", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("parse error: undecodable token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("parse error: token response missing access_token")
	}
	return payload.AccessToken, nil
}

// Do attaches the current bearer token to req and forwards it to the
// underlying client. A 401 triggers exactly one forced refresh and retry
// with a cloned request (cloneRequest re-reads the body via GetBody when
// present and otherwise buffers it, so either kind of request body can be
// retried).
func (d *Decorator) Do(ctx context.Context, req *http.Request) (httpclient.Response, error) {
	token, err := d.EnsureToken(ctx)
	if err != nil {
		return httpclient.Response{}, err
	}

	attempt := cloneRequest(req)
	attempt.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(ctx, attempt)
	if !isUnauthorized(resp, err) {
		return resp, err
	}

	token, refreshErr := d.invalidateAndRefresh(ctx)
	if refreshErr != nil {
		return resp, err
	}

	retry := cloneRequest(req)
	retry.Header.Set("Authorization", "Bearer "+token)
	return d.client.Do(ctx, retry)
}

func isUnauthorized(resp httpclient.Response, err error) bool {
	if resp.StatusCode == http.StatusUnauthorized {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "401")
}

// cloneRequest duplicates req (including a re-readable body via GetBody)
// so a retry after refresh doesn't reuse an already-drained body reader.
func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	} else if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		clone.Body = io.NopCloser(strings.NewReader(string(data)))
		req.Body = io.NopCloser(strings.NewReader(string(data)))
	}
	return clone
}
