// Package engine wires the scheduler, journey executor, session store,
// circuit breaker and aggregator into a single runnable load-generation or
// trace-replay run (spec.md §2's six collaborating components plus the
// shutdown coordinator).
package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amr9/crossloadgen/internal/aggregator"
	"github.com/amr9/crossloadgen/internal/circuitbreaker"
	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/internal/journey"
	"github.com/amr9/crossloadgen/internal/oauth"
	"github.com/amr9/crossloadgen/internal/scheduler"
	"github.com/amr9/crossloadgen/internal/sessionstore"
	"github.com/amr9/crossloadgen/pkg/models"
	"go.uber.org/zap"
)

// Engine owns the wiring for a single run: one HTTP client, one session
// store, one journey executor, one aggregator and an optional circuit
// breaker, all bound to the run's immutable Config.
type Engine struct {
	cfg     models.Config
	log     *zap.SugaredLogger
	client  *httpclient.Client
	store   *sessionstore.Store
	exec    *journey.Executor
	agg     aggregator.Recorder
	monitor *aggregator.Monitor
	breaker *circuitbreaker.Breaker
	uids    *journey.UIDSource
	auth    *oauth.Decorator

	totalCount  int64 // atomic
	failedCount int64 // atomic
}

// New builds an Engine from a validated Config. Construction fails only if
// the circuit breaker condition (when configured) fails to parse — every
// other failure mode (target unreachable, etc.) surfaces during Run.
func New(cfg models.Config, log *zap.SugaredLogger) (*Engine, error) {
	client := httpclient.New(httpclient.Options{
		Insecure: cfg.Insecure,
		Timeout:  cfg.Timeout,
	})

	breaker, err := circuitbreaker.NewBreaker(cfg.CircuitBreaker)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker condition: %w", err)
	}

	store := sessionstore.New(client, cfg.BaseURL)

	var authDecorator *oauth.Decorator
	if cfg.Auth != nil {
		authDecorator = oauth.New(client, *cfg.Auth)
	}

	poolSize := cfg.UIDPoolSize
	uids := journey.NewUIDSource(string(cfg.UIDMode), cfg.FixedUID, cfg.UIDPattern, poolSize)

	var agg aggregator.Recorder
	if cfg.Streaming {
		agg = aggregator.NewStreaming()
	} else {
		agg = aggregator.New()
	}

	e := &Engine{
		cfg:     cfg,
		log:     log,
		client:  client,
		store:   store,
		exec:    journey.New(client, store, cfg),
		agg:     agg,
		monitor: aggregator.NewMonitor(),
		breaker: breaker,
		uids:    uids,
		auth:    authDecorator,
	}
	return e, nil
}

// Monitor exposes the live snapshot feed for a TUI dashboard.
func (e *Engine) Monitor() *aggregator.Monitor { return e.monitor }

// LoadSessions pre-populates the store from a previously saved session
// cache, if LoadSessionsPath is configured. A missing file is not an error.
func (e *Engine) LoadSessions() error {
	if e.cfg.LoadSessionsPath == "" {
		return nil
	}
	return e.store.LoadFromFile(e.cfg.LoadSessionsPath, e.cfg.PuzzleID, e.cfg.Series)
}

// SaveSessions persists every derived session to SaveSessionsPath, if configured.
func (e *Engine) SaveSessions() error {
	if e.cfg.SaveSessionsPath == "" {
		return nil
	}
	return e.store.SaveToFile(e.cfg.SaveSessionsPath)
}

// record folds one completed journey into the aggregator, the live
// monitor, and the circuit breaker, returning whether the breaker has now
// tripped (in which case the caller should stop dispatching).
func (e *Engine) record(rec models.CompletionRecord) bool {
	e.agg.Record(rec)
	e.monitor.Observe(rec.Result.Success, rec.Result.TotalLatencyMs())

	total := atomic.AddInt64(&e.totalCount, 1)
	var failed int64
	if rec.Crashed || !rec.Result.Success {
		failed = atomic.AddInt64(&e.failedCount, 1)
	} else {
		failed = atomic.LoadInt64(&e.failedCount)
	}

	if e.breaker == nil {
		return false
	}
	return e.breaker.Check(total, failed)
}

const safetyMarginFloor = 2 * time.Minute
