// Package httpclient is the bounded-pool HTTP wrapper every worker shares
// (SPEC_FULL.md §B, spec.md §4.1): connection reuse, dispatcher limits, an
// async fire-and-forget surface, and the target's embedded-params HTML
// decoding.
package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Options configures the pool and dispatcher limits (spec.md §4.1).
type Options struct {
	Insecure bool
	H2C      bool
	Timeout  time.Duration // per-request timeout; 0 uses the 30s default

	MaxIdleConnsPerHost int // default 100
	MaxConcurrent       int // default 200, dispatcher-wide
	MaxPerHost          int // default 100
}

func (o Options) withDefaults() Options {
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = 100
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 200
	}
	if o.MaxPerHost <= 0 {
		o.MaxPerHost = 100
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Client wraps http.Client with a dispatcher semaphore bounding total
// in-flight requests. Excess Fire calls queue on the semaphore; the pool
// itself never drops a request.
type Client struct {
	http *http.Client
	opts Options
	sem  chan struct{}
}

// New builds a Client per the given options. A nil *Client is never
// returned; construction cannot fail.
func New(opts Options) *Client {
	opts = opts.withDefaults()

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}

	var roundTripper http.RoundTripper
	if opts.H2C {
		roundTripper = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		}
	} else {
		transport := &http.Transport{
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.Insecure},
			MaxIdleConns:          opts.MaxIdleConnsPerHost * 4,
			MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
			MaxConnsPerHost:       opts.MaxPerHost,
			IdleConnTimeout:       5 * time.Minute,
			ForceAttemptHTTP2:     true,
			ResponseHeaderTimeout: opts.Timeout,
			DialContext:           dialer.DialContext,
		}
		_ = http2.ConfigureTransport(transport)
		roundTripper = transport
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: roundTripper,
		},
		opts: opts,
		sem:  make(chan struct{}, opts.MaxConcurrent),
	}
}

// Response is the outcome of a Fire call: the drained body, status code and
// elapsed latency, or a propagated error. The body is always drained so the
// underlying connection can be reused.
type Response struct {
	StatusCode int
	Body       []byte
	LatencyMs  int64
	Proto      string
}

// Future completes exactly once with the result of a Fire call.
type Future struct {
	done chan struct{}
	resp Response
	err  error
}

// Wait blocks until the request completes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Fire issues req asynchronously, acquiring a dispatcher slot first. The
// returned Future completes on the goroutine performing the I/O, not the
// caller; it never double-fires.
func (c *Client) Fire(ctx context.Context, req *http.Request) *Future {
	f := &Future{done: make(chan struct{})}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		f.err = ctx.Err()
		close(f.done)
		return f
	}

	go func() {
		defer func() { <-c.sem }()
		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			f.err = fmt.Errorf("transport error: %s", sanitizeTransportError(err))
			close(f.done)
			return
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		latency := time.Since(start).Milliseconds()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			f.err = fmt.Errorf("protocol error: unexpected status %d", resp.StatusCode)
		} else if readErr != nil {
			f.err = fmt.Errorf("transport error reading body: %s", sanitizeTransportError(readErr))
		}

		f.resp = Response{
			StatusCode: resp.StatusCode,
			Body:       body,
			LatencyMs:  latency,
			Proto:      resp.Proto,
		}
		close(f.done)
	}()

	return f
}

// Do is the synchronous convenience wrapper around Fire, used by callers
// that don't need to overlap the wait with other work.
func (c *Client) Do(ctx context.Context, req *http.Request) (Response, error) {
	return c.Fire(ctx, req).Wait(ctx)
}

// DecodeBase64JSON base64-decodes a sub-field extracted from the params
// block (e.g. rawsps, rawp). It tolerates both standard and URL-safe
// alphabets, matching what the target's own client-side JS emits.
func DecodeBase64JSON(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("parse error: empty base64 field")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("parse error: undecodable base64 field: %w", err)
			}
		}
	}
	return decoded, nil
}
