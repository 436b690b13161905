// Package circuitbreaker is the supplemented early-abort safety valve
// (SPEC_FULL.md §C.1): it watches the aggregate journey/event failure rate
// and signals the run to stop once a configured threshold trips, the same
// way the teacher's breaker watched raw HTTP failures.
package circuitbreaker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/amr9/crossloadgen/pkg/models"
)

// Breaker monitors failure rates and trips when a configured threshold is exceeded.
type Breaker struct {
	config  *models.CircuitBreakerConfig
	tripped int32 // atomic: 0 = closed, 1 = open
	reason  string
	mu      sync.Mutex
}

// NewBreaker creates a circuit breaker from config. A nil config yields a
// nil *Breaker whose methods are all safe no-ops.
func NewBreaker(cfg *models.CircuitBreakerConfig) (*Breaker, error) {
	if cfg == nil {
		return nil, nil
	}
	if err := ParseCondition(cfg); err != nil {
		return nil, err
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 100
	}
	return &Breaker{config: cfg}, nil
}

// conditionPattern matches expressions like "errors > 10%" or "error_rate > 0.1".
var conditionPattern = regexp.MustCompile(`(?i)(errors?|error_rate|failures?)\s*([><=]+)\s*([\d.]+)(%)?`)

// ParseCondition parses the stop_if expression and populates the config fields.
func ParseCondition(cfg *models.CircuitBreakerConfig) error {
	expr := strings.TrimSpace(cfg.StopIf)
	if expr == "" {
		return fmt.Errorf("empty circuit breaker condition")
	}

	matches := conditionPattern.FindStringSubmatch(expr)
	if matches == nil {
		return fmt.Errorf("invalid circuit breaker condition %q: expected format 'errors > 10%%' or 'error_rate > 0.1'", expr)
	}

	cfg.Metric = strings.ToLower(matches[1])
	cfg.Operator = matches[2]

	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return fmt.Errorf("invalid threshold value %q: %w", matches[3], err)
	}
	cfg.Threshold = threshold
	cfg.IsPercent = matches[4] == "%"

	switch cfg.Metric {
	case "error", "errors":
		cfg.Metric = "errors"
	case "failure", "failures":
		cfg.Metric = "failures"
	case "error_rate":
		cfg.Metric = "error_rate"
	}

	return nil
}

// Check evaluates whether the breaker should trip given the current
// aggregate counts. totalJourneys and failedJourneys are cumulative counts
// observed by the aggregator so far. Returns true once tripped.
func (b *Breaker) Check(totalJourneys, failedJourneys int64) bool {
	if b == nil || b.config == nil {
		return false
	}

	if atomic.LoadInt32(&b.tripped) == 1 {
		return true
	}

	if totalJourneys < b.config.MinSamples {
		return false
	}

	var currentValue float64
	switch b.config.Metric {
	case "errors", "error_rate":
		if b.config.IsPercent {
			currentValue = float64(failedJourneys) / float64(totalJourneys) * 100
		} else {
			currentValue = float64(failedJourneys) / float64(totalJourneys)
		}
	case "failures":
		currentValue = float64(failedJourneys)
	default:
		return false
	}

	shouldTrip := false
	switch b.config.Operator {
	case ">":
		shouldTrip = currentValue > b.config.Threshold
	case ">=":
		shouldTrip = currentValue >= b.config.Threshold
	case "<":
		shouldTrip = currentValue < b.config.Threshold
	case "<=":
		shouldTrip = currentValue <= b.config.Threshold
	}

	if shouldTrip {
		b.mu.Lock()
		if atomic.CompareAndSwapInt32(&b.tripped, 0, 1) {
			if b.config.IsPercent {
				b.reason = fmt.Sprintf("circuit breaker tripped: %s (%.1f%%) exceeded threshold (%.1f%%)",
					b.config.Metric, currentValue, b.config.Threshold)
			} else {
				b.reason = fmt.Sprintf("circuit breaker tripped: %s (%.3f) exceeded threshold (%.3f)",
					b.config.Metric, currentValue, b.config.Threshold)
			}
		}
		b.mu.Unlock()
		return true
	}

	return false
}

// IsTripped returns whether the breaker has tripped.
func (b *Breaker) IsTripped() bool {
	if b == nil {
		return false
	}
	return atomic.LoadInt32(&b.tripped) == 1
}

// Reason returns the reason for tripping (empty if not tripped).
func (b *Breaker) Reason() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// Reset clears the breaker's tripped state.
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	atomic.StoreInt32(&b.tripped, 0)
	b.mu.Lock()
	b.reason = ""
	b.mu.Unlock()
}
