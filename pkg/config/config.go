// Package config loads the YAML run configuration into an immutable
// models.Config and validates it before a run starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amr9/crossloadgen/internal/circuitbreaker"
	"github.com/amr9/crossloadgen/pkg/models"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is the structure of the on-disk YAML configuration file.
type YAMLConfig struct {
	Target struct {
		BaseURL  string `yaml:"base_url"`
		Series   string `yaml:"series"`
		PuzzleID string `yaml:"puzzle_id"`
		StateLen int    `yaml:"state_len"`
		Timeout  string `yaml:"timeout,omitempty"`
		Insecure bool   `yaml:"insecure,omitempty"`
		CDNBase  string `yaml:"cdn_base,omitempty"`
	} `yaml:"target"`

	UID struct {
		Mode     string `yaml:"mode,omitempty"` // fixed | random | pool
		Fixed    string `yaml:"fixed,omitempty"`
		Pattern  string `yaml:"pattern,omitempty"`
		PoolSize int    `yaml:"pool_size,omitempty"`
	} `yaml:"uid,omitempty"`

	Journey struct {
		Variant string `yaml:"variant,omitempty"` // standard | standard-plus-static-assets
	} `yaml:"journey,omitempty"`

	Wave struct {
		RPS      int `yaml:"rps,omitempty"`
		Duration int `yaml:"duration,omitempty"`
	} `yaml:"wave,omitempty"`

	Replay struct {
		File      string  `yaml:"file,omitempty"`
		Speed     float64 `yaml:"speed,omitempty"`
		Streaming bool    `yaml:"streaming,omitempty"`
	} `yaml:"replay,omitempty"`

	Sessions struct {
		Save string `yaml:"save,omitempty"`
		Load string `yaml:"load,omitempty"`
	} `yaml:"sessions,omitempty"`

	Auth *struct {
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"auth,omitempty"`

	CircuitBreaker *struct {
		StopIf     string `yaml:"stop_if"`
		MinSamples int64  `yaml:"min_samples,omitempty"`
	} `yaml:"circuit_breaker,omitempty"`

	Verbosity int    `yaml:"verbosity,omitempty"`
	Title     string `yaml:"title,omitempty"`
}

// LoadConfig reads a YAML file and converts it into a models.Config.
func LoadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &models.Config{
		BaseURL:     yamlCfg.Target.BaseURL,
		Series:      yamlCfg.Target.Series,
		PuzzleID:    yamlCfg.Target.PuzzleID,
		StateLen:    yamlCfg.Target.StateLen,
		Insecure:    yamlCfg.Target.Insecure,
		CDNBase:     yamlCfg.Target.CDNBase,
		UIDMode:     models.UIDMode(yamlCfg.UID.Mode),
		FixedUID:    yamlCfg.UID.Fixed,
		UIDPattern:  yamlCfg.UID.Pattern,
		UIDPoolSize: yamlCfg.UID.PoolSize,
		Variant:     models.JourneyVariant(yamlCfg.Journey.Variant),
		RPS:         yamlCfg.Wave.RPS,
		Duration:    yamlCfg.Wave.Duration,
		ReplayFile:  yamlCfg.Replay.File,
		Speed:       yamlCfg.Replay.Speed,
		Streaming:   yamlCfg.Replay.Streaming,

		SaveSessionsPath: yamlCfg.Sessions.Save,
		LoadSessionsPath: yamlCfg.Sessions.Load,

		Verbosity: yamlCfg.Verbosity,
		Title:     yamlCfg.Title,
	}

	if yamlCfg.Target.Timeout != "" {
		d, err := time.ParseDuration(yamlCfg.Target.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format: %w", err)
		}
		cfg.Timeout = d
	}

	if yamlCfg.Auth != nil {
		cfg.Auth = &models.OAuthConfig{
			TokenURL:     yamlCfg.Auth.TokenURL,
			ClientID:     yamlCfg.Auth.ClientID,
			ClientSecret: yamlCfg.Auth.ClientSecret,
		}
	}

	if yamlCfg.CircuitBreaker != nil && yamlCfg.CircuitBreaker.StopIf != "" {
		cfg.CircuitBreaker = &models.CircuitBreakerConfig{
			StopIf:     yamlCfg.CircuitBreaker.StopIf,
			MinSamples: yamlCfg.CircuitBreaker.MinSamples,
		}
		if err := circuitbreaker.ParseCondition(cfg.CircuitBreaker); err != nil {
			return nil, fmt.Errorf("invalid circuit breaker: %w", err)
		}
		if cfg.CircuitBreaker.MinSamples <= 0 {
			cfg.CircuitBreaker.MinSamples = 100 // cold start protection
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills in values the CLI surface (§6) documents as defaults
// when the config file leaves them unset. LoadConfig applies it before the
// CLI flags are overlaid; a run configured from flags alone, with no config
// file, does not get these defaults.
func applyDefaults(cfg *models.Config) {
	if cfg.UIDMode == "" {
		if cfg.FixedUID != "" {
			cfg.UIDMode = models.UIDModeFixed
		} else {
			cfg.UIDMode = models.UIDModeRandom
		}
	}
	if cfg.Variant == "" {
		cfg.Variant = models.VariantStandard
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.StateLen <= 0 {
		cfg.StateLen = 185
	}
}

// Validate checks whether the configuration is complete enough to run,
// collecting every problem into one formatted error rather than failing on
// the first (fatal condition per spec §7).
func Validate(cfg *models.Config) error {
	result := &ValidationResult{}

	if cfg.BaseURL == "" {
		result.Add(ValidationError{
			Field:   "target.base_url",
			Message: "missing required field",
			Hint:    GetHint("target.base_url"),
		})
	}
	if cfg.Series == "" {
		result.Add(ValidationError{
			Field:   "target.series",
			Message: "missing required field",
			Hint:    GetHint("target.series"),
		})
	}

	if valid, suggestion := ValidateEnum(string(cfg.UIDMode), validUIDModes); !valid && cfg.UIDMode != "" {
		e := ValidationError{
			Field:    "uid.mode",
			Value:    string(cfg.UIDMode),
			Message:  "invalid uid mode",
			Expected: "fixed, random, or pool",
		}
		if suggestion != "" {
			e.DidYouMean = suggestion
		}
		result.Add(e)
	}
	if cfg.UIDMode == models.UIDModeFixed && cfg.FixedUID == "" {
		result.Add(ValidationError{
			Field:   "uid.fixed",
			Message: "uid.mode is 'fixed' but uid.fixed is empty",
		})
	}
	if cfg.UIDMode == models.UIDModePool && cfg.UIDPoolSize <= 0 {
		result.Add(ValidationError{
			Field:   "uid.pool_size",
			Message: "uid.mode is 'pool' but pool_size is not positive",
		})
	}

	if valid, suggestion := ValidateEnum(string(cfg.Variant), validVariants); !valid && cfg.Variant != "" {
		e := ValidationError{
			Field:    "journey.variant",
			Value:    string(cfg.Variant),
			Message:  "invalid journey variant",
			Expected: "standard or standard-plus-static-assets",
		}
		if suggestion != "" {
			e.DidYouMean = suggestion
		}
		result.Add(e)
	}

	replayMode := cfg.ReplayFile != ""
	if !replayMode {
		if cfg.RPS <= 0 {
			result.Add(ValidationError{
				Field:    "wave.rps",
				Value:    fmt.Sprintf("%d", cfg.RPS),
				Message:  "rps must be greater than 0",
				Expected: "positive integer",
				Hint:     GetHint("wave.rps"),
			})
		}
		if cfg.Duration <= 0 {
			result.Add(ValidationError{
				Field:    "wave.duration",
				Message:  "duration must be greater than 0 seconds",
				Expected: "positive integer number of seconds",
				Hint:     GetHint("wave.duration"),
			})
		}
	} else if cfg.Speed <= 0 {
		result.Add(ValidationError{
			Field:    "replay.speed",
			Value:    fmt.Sprintf("%v", cfg.Speed),
			Message:  "speed factor must be positive",
			Hint:     GetHint("replay.speed"),
		})
	}

	if cfg.PuzzleID == "" {
		result.Add(ValidationError{
			Field:   "target.puzzle_id",
			Message: "missing required field",
		})
	}
	if cfg.StateLen <= 0 {
		result.Add(ValidationError{
			Field:   "target.state_len",
			Message: "state_len must be positive",
		})
	}

	if result.HasErrors() {
		return fmt.Errorf("%s", result.FormatErrors())
	}

	return nil
}

// SaveConfig writes the current configuration back out as YAML, the way a
// TUI setup wizard or --save-sessions-adjacent flow would persist a scenario
// the operator just built interactively.
func SaveConfig(path string, cfg *models.Config) error {
	var yamlCfg YAMLConfig
	yamlCfg.Target.BaseURL = cfg.BaseURL
	yamlCfg.Target.Series = cfg.Series
	yamlCfg.Target.PuzzleID = cfg.PuzzleID
	yamlCfg.Target.StateLen = cfg.StateLen
	yamlCfg.Target.Insecure = cfg.Insecure
	yamlCfg.Target.CDNBase = cfg.CDNBase
	if cfg.Timeout > 0 {
		yamlCfg.Target.Timeout = cfg.Timeout.String()
	}

	yamlCfg.UID.Mode = string(cfg.UIDMode)
	yamlCfg.UID.Fixed = cfg.FixedUID
	yamlCfg.UID.Pattern = cfg.UIDPattern
	yamlCfg.UID.PoolSize = cfg.UIDPoolSize

	yamlCfg.Journey.Variant = string(cfg.Variant)
	yamlCfg.Wave.RPS = cfg.RPS
	yamlCfg.Wave.Duration = cfg.Duration
	yamlCfg.Replay.File = cfg.ReplayFile
	yamlCfg.Replay.Speed = cfg.Speed
	yamlCfg.Replay.Streaming = cfg.Streaming
	yamlCfg.Sessions.Save = cfg.SaveSessionsPath
	yamlCfg.Sessions.Load = cfg.LoadSessionsPath
	yamlCfg.Verbosity = cfg.Verbosity
	yamlCfg.Title = cfg.Title

	data, err := yaml.Marshal(yamlCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	comment := fmt.Sprintf("\n# Run this configuration:\n# ./crossloadgen -config %s\n", filepath.Base(path))
	data = append(data, []byte(comment)...)

	return os.WriteFile(path, data, 0644)
}
