package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/amr9/crossloadgen/internal/debug"
	"github.com/amr9/crossloadgen/internal/report"
	"github.com/amr9/crossloadgen/internal/tui"
	"github.com/amr9/crossloadgen/pkg/config"
	"github.com/amr9/crossloadgen/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("\n❌ Fatal error: %v\n", r)
			fmt.Println("💡 Please report this issue at: https://github.com/amr9/crossloadgen/issues")
			os.Exit(1)
		}
	}()

	runtime.GOMAXPROCS(runtime.NumCPU())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\n⚠️  received interrupt signal, shutting down gracefully...")
		cancel()
		time.Sleep(500 * time.Millisecond)
	}()

	var (
		configPath  string
		baseURL     string
		series      string
		puzzleID    string
		rps         int
		durationSec int
		replayFile  string
		speed       float64
		streaming   bool
		fixedUID    string
		randomUID   bool
		uidPoolSize int
		title       string
		outputPath  string
		saveSess    string
		loadSess    string
		verbosity   int
		debugMode   bool
	)

	flag.StringVar(&configPath, "config", "", "path to YAML configuration file")
	flag.StringVar(&configPath, "f", "", "path to YAML configuration file (shorthand)")
	flag.StringVar(&baseURL, "url", "", "target base URL")
	flag.StringVar(&series, "series", "", "series / tenant identifier")
	flag.StringVar(&puzzleID, "puzzle-id", "", "puzzle identifier")
	flag.IntVar(&rps, "rps", 0, "synthetic wave requests launched per second")
	flag.IntVar(&durationSec, "duration", 0, "wave duration in seconds")
	flag.StringVar(&replayFile, "replay", "", "trace JSONL file to replay instead of running a wave")
	flag.Float64Var(&speed, "speed", 0, "replay speed multiplier")
	flag.BoolVar(&streaming, "streaming", false, "stream the replay trace instead of loading it whole (for traces too large to fit in memory)")
	flag.StringVar(&fixedUID, "uid", "", "fixed virtual user identity for every journey")
	flag.BoolVar(&randomUID, "random-uid", false, "draw a fresh random uid per journey")
	flag.IntVar(&uidPoolSize, "uid-pool-size", 0, "draw uids from a pre-generated pool of this size")
	flag.StringVar(&title, "title", "", "title recorded in the results tree and reports")
	flag.StringVar(&outputPath, "output", "", "path to write the JSON results tree")
	flag.StringVar(&saveSess, "save-sessions", "", "path to persist the session cache after the run")
	flag.StringVar(&loadSess, "load-sessions", "", "path to pre-warm the session cache before the run")
	flag.IntVar(&verbosity, "v", 0, "verbosity level (0 quiet, 1 normal, 2+ verbose)")
	flag.BoolVar(&debugMode, "debug", false, "run a single scripted journey with step-by-step output, then exit")
	flag.BoolVar(&debugMode, "d", false, "run in debug mode (shorthand)")

	flag.Parse()

	var cfg *models.Config
	if configPath != "" {
		loadedCfg, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("Error loading config file: %v\n", err)
			os.Exit(1)
		}
		cfg = loadedCfg
	} else {
		cfg = &models.Config{}
	}

	// Precedence: flag > file > default.
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if series != "" {
		cfg.Series = series
	}
	if puzzleID != "" {
		cfg.PuzzleID = puzzleID
	}
	if rps > 0 {
		cfg.RPS = rps
	}
	if durationSec > 0 {
		cfg.Duration = durationSec
	}
	if replayFile != "" {
		cfg.ReplayFile = replayFile
	}
	if speed > 0 {
		cfg.Speed = speed
	}
	if streaming {
		cfg.Streaming = true
	}
	if fixedUID != "" {
		cfg.UIDMode = models.UIDModeFixed
		cfg.FixedUID = fixedUID
	}
	if randomUID {
		cfg.UIDMode = models.UIDModeRandom
	}
	if uidPoolSize > 0 {
		cfg.UIDMode = models.UIDModePool
		cfg.UIDPoolSize = uidPoolSize
	}
	if title != "" {
		cfg.Title = title
	}
	if saveSess != "" {
		cfg.SaveSessionsPath = saveSess
	}
	if loadSess != "" {
		cfg.LoadSessionsPath = loadSess
	}
	if verbosity > 0 {
		cfg.Verbosity = verbosity
	}

	startRunning := false
	if err := config.Validate(cfg); err == nil {
		startRunning = true
	} else if configPath != "" {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}
	// No config file and an incomplete config: fall through to the TUI
	// setup wizard instead of exiting.

	log := newLogger(cfg.Verbosity)
	defer log.Sync() //nolint:errcheck

	if debugMode {
		if !startRunning {
			fmt.Println("❌ debug mode requires a complete configuration")
			fmt.Println("💡 provide a config file: crossloadgen -config scenario.yaml --debug")
			os.Exit(1)
		}
		uid := cfg.FixedUID
		if uid == "" {
			uid = "debug-user"
		}
		if err := debug.Run(ctx, *cfg, uid); err != nil {
			fmt.Printf("❌ debug run failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(tui.NewModel(*cfg, log, startRunning))
	finalModel, err := p.Run()
	if err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}

	m, ok := finalModel.(tui.MainModel)
	if !ok {
		return
	}
	results, runErr := m.Results()
	if runErr != nil {
		fmt.Printf("\n❌ run failed: %v\n", runErr)
		os.Exit(1)
	}
	if results.TotalThreads == 0 {
		// Setup wizard was abandoned (Ctrl+C) before a run ever started.
		return
	}

	report.PrintSummary(results)

	reportPath := outputPath
	if reportPath == "" {
		reportPath = "results.json"
	}
	if err := report.WriteJSON(results, reportPath); err != nil {
		fmt.Printf("⚠️  failed to write results file: %v\n", err)
	} else {
		fmt.Printf("📊 results saved to %s\n", reportPath)
	}

	if results.Partial {
		os.Exit(1)
	}
}

func newLogger(verbosity int) *zap.SugaredLogger {
	var zcfg zap.Config
	if verbosity >= 2 {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.DisableStacktrace = true
	}
	if verbosity == 0 {
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}
