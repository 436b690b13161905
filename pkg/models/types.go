// Package models holds the data types shared across the engine: the
// immutable run configuration, per-journey state, and the records handed
// off between the scheduler, the journey executor and the results
// aggregator.
package models

import "time"

// JourneyVariant selects which scripted step sequence a journey executes.
type JourneyVariant string

const (
	VariantStandard           JourneyVariant = "standard"
	VariantStandardPlusStatic JourneyVariant = "standard-plus-static-assets"
)

// UIDMode selects how a virtual user identity is chosen per journey invocation.
type UIDMode string

const (
	UIDModeFixed  UIDMode = "fixed"
	UIDModeRandom UIDMode = "random"
	UIDModePool   UIDMode = "pool"
)

// Config is the immutable run configuration. It is constructed once (from a
// YAML file, CLI flags, or both) and never mutated afterward; every
// goroutine that reads it during a run may do so without synchronization.
type Config struct {
	// Target
	BaseURL  string        `json:"base_url"`
	Series   string        `json:"series"`    // tenant / set identifier
	PuzzleID string        `json:"puzzle_id"` // fixed puzzle identifier
	StateLen int           `json:"state_len"` // state vector length
	Timeout  time.Duration `json:"timeout"`
	Insecure bool          `json:"insecure"`

	// Virtual user identity
	UIDMode     UIDMode `json:"uid_mode"`
	FixedUID    string  `json:"fixed_uid"`
	UIDPattern  string  `json:"uid_pattern"`   // regex for pool/random generation
	UIDPoolSize int     `json:"uid_pool_size"` // size of pre-generated pool, UIDModePool only

	// Journey
	Variant JourneyVariant `json:"variant"`
	CDNBase string         `json:"cdn_base"` // tenant-scoped static asset prefix

	// Wave mode
	RPS      int `json:"rps"`
	Duration int `json:"duration_secs"`

	// Replay mode
	ReplayFile string  `json:"replay_file"`
	Speed      float64 `json:"speed"`
	Streaming  bool    `json:"streaming"` // use the streaming (sampled) variant for huge traces

	// Session cache
	SaveSessionsPath string `json:"save_sessions_path"`
	LoadSessionsPath string `json:"load_sessions_path"`

	// Optional tenant OAuth2 variant
	Auth *OAuthConfig `json:"auth,omitempty"`

	// Optional early-abort
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty"`

	Verbosity int    `json:"verbosity"` // 0 quiet, 1 normal, 2+ verbose/debug
	Title     string `json:"title"`
}

// OAuthConfig configures the authenticated-tenant decorator (design note §9).
type OAuthConfig struct {
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// CircuitBreakerConfig is the supplemented early-abort safety valve,
// adapted from the teacher's circuit breaker onto journey/event failures.
type CircuitBreakerConfig struct {
	StopIf     string `json:"stop_if"` // e.g. "errors > 10%"
	MinSamples int64  `json:"min_samples"`

	// Parsed fields, populated by circuitbreaker.ParseCondition.
	Metric    string  `json:"-"`
	Operator  string  `json:"-"`
	Threshold float64 `json:"-"`
	IsPercent bool    `json:"-"`
}

// SessionTokens are the derived per-(user, puzzle) credentials. A session is
// valid iff LoadToken is non-empty.
type SessionTokens struct {
	LoadToken string `json:"loadToken"`
	PlayID    string `json:"playId"`
	Err       string `json:"err,omitempty"`
}

func (s SessionTokens) Valid() bool { return s.LoadToken != "" }

// JourneyContext is the per-invocation scratchpad threaded through the
// scripted steps. It is exclusively owned by the executing worker — no
// synchronization is needed.
type JourneyContext struct {
	UID       string
	PuzzleID  string
	Series    string
	LoadToken string
	PlayID    string
}

// ErrorKind classifies a failure per spec §7.
type ErrorKind string

const (
	ErrTransport          ErrorKind = "transport"
	ErrProtocol           ErrorKind = "protocol"
	ErrParse              ErrorKind = "parse"
	ErrLogic              ErrorKind = "logic"
	ErrSessionUnavailable ErrorKind = "session-unavailable"
)

// StepError is a classified error attached to a StepResult/JourneyResult.
type StepError struct {
	Kind ErrorKind
	Msg  string
}

func (e *StepError) Error() string { return string(e.Kind) + ": " + e.Msg }

// AssetResult records one static-asset fetch folded into step 1 or step 3
// of the with-static-assets journey variant. Failures here are non-fatal
// (Open Question (b)).
type AssetResult struct {
	URL       string `json:"url"`
	LatencyMs int64  `json:"latency_ms"`
	Success   bool   `json:"success"`
	Err       string `json:"err,omitempty"`
}

// StepResult is the outcome of a single scripted step.
type StepResult struct {
	Start     time.Time     `json:"start_timestamp"`
	End       time.Time     `json:"end_timestamp"`
	LatencyMs int64         `json:"latency_ms"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Assets    []AssetResult `json:"assets,omitempty"`

	// Step 4 only.
	Iterations []IterationResult `json:"iterations,omitempty"`
}

// IterationResult is one of the ten play-post iterations of step 4.
type IterationResult struct {
	Iteration int    `json:"iteration"`
	PlayState int    `json:"play_state"`
	LatencyMs int64  `json:"latency_ms"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// JourneyResult aggregates the four step results plus an overall success flag.
type JourneyResult struct {
	Step1, Step2, Step3, Step4 StepResult
	Success                    bool
}

// TotalLatencyMs is step-1 + step-2 + step-3 latency plus the sum of step-4
// iteration latencies (spec §4.5).
func (j JourneyResult) TotalLatencyMs() int64 {
	total := j.Step1.LatencyMs + j.Step2.LatencyMs + j.Step3.LatencyMs
	for _, it := range j.Step4.Iterations {
		total += it.LatencyMs
	}
	return total
}

// CompletionRecord is the unit emitted to the aggregator.
type CompletionRecord struct {
	Wave       int           `json:"wave"` // wave number, or event index for replay
	Thread     int           `json:"thread"`
	UID        string        `json:"uid,omitempty"`
	Launch     time.Time     `json:"launch"`
	Completed  time.Time     `json:"completed"`
	Result     JourneyResult `json:"result"`
	Crashed    bool          `json:"crashed,omitempty"`
	CrashError string        `json:"crash_error,omitempty"`
	Partial    bool          `json:"partial,omitempty"` // emitted during a cancelled drain
}

// WaveStats is the per-wave statistics block.
type WaveStats struct {
	Wave         int        `json:"wave"`
	Threads      int        `json:"threads"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	StepMeanMs   [4]float64 `json:"step_mean_ms"`
	MinMs        int64      `json:"min_ms"`
	MaxMs        int64      `json:"max_ms"`
	MeanMs       float64    `json:"mean_ms"`
	P95Ms        int64      `json:"p95_ms"`
	StdDevMs     float64    `json:"stddev_ms"`
	Outliers     int        `json:"outliers"`
}

// ResultsConfig mirrors the "config" sub-object of the results structure (§6).
type ResultsConfig struct {
	RPS       int    `json:"rps"`
	DurationS int    `json:"duration"`
	PuzzleID  string `json:"puzzle_id"`
	StateLen  int    `json:"state_len"`
	TrueRPS   bool   `json:"true_rps"`
}

// Results is the finalized tree handed to the (external) report renderer.
type Results struct {
	Title       string             `json:"title"`
	Timestamp   time.Time          `json:"timestamp"`
	Config      ResultsConfig      `json:"config"`
	Waves       []WaveStats        `json:"waves"`
	Records     []CompletionRecord `json:"results"`
	TotalTimeMs int64              `json:"total_time_ms"`

	// Overall statistics (§4.5).
	TotalThreads int     `json:"total_threads"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	SuccessRate  float64 `json:"success_rate"`
	MinMs        int64   `json:"min_ms"`
	MaxMs        int64   `json:"max_ms"`
	MeanMs       float64 `json:"mean_ms"`
	P50Ms        int64   `json:"p50_ms"`
	P95Ms        int64   `json:"p95_ms"`

	Partial bool `json:"partial,omitempty"` // set if the run was cancelled before draining
}

// TraceEvent is one parsed line of a JSONL replay trace (§3, §6).
type TraceEvent struct {
	Index     int    `json:"-"` // assigned monotonically while parsing
	TS        int64  `json:"ts"`
	Endpoint  string `json:"endpoint"`
	Method    string `json:"method"`
	UID       string `json:"userId,omitempty"`
	DelayMs   int64  `json:"delayMs"`
	Series    string `json:"series,omitempty"`
	PuzzleID  string `json:"puzzleId,omitempty"`
	Offset    string `json:"offset,omitempty"`
	IsLastReq bool   `json:"isLastReq,omitempty"`
}

// SessionCacheEntry is the on-disk representation of one cached session,
// keyed by uid in the JSON file (§6).
type SessionCacheEntry struct {
	LoadToken string `json:"loadToken"`
	PlayID    string `json:"playId"`
}
