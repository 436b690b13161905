package tui

import (
	"context"
	"time"

	"github.com/amr9/crossloadgen/internal/engine"
	"github.com/amr9/crossloadgen/internal/replay"
	"github.com/amr9/crossloadgen/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type State int

const (
	StateSetup State = iota
	StateRunning
	StateSummary
)

// MainModel drives the setup wizard, the live dashboard and the final
// summary screen, delegating the actual run to internal/engine.
type MainModel struct {
	state    State
	config   models.Config
	log      *zap.SugaredLogger
	eng      *engine.Engine
	results  models.Results
	runErr   error
	quitting bool

	setupModel *SetupModel
	dashModel  *DashModel
	sumModel   *SummaryModel
}

// NewModel builds a MainModel. If startRunning is false, the setup wizard
// collects the wave/replay configuration first; otherwise cfg is already
// complete and the run starts immediately.
func NewModel(cfg models.Config, log *zap.SugaredLogger, startRunning bool) MainModel {
	initialState := StateSetup
	if startRunning {
		initialState = StateRunning
	}

	m := MainModel{
		state:      initialState,
		config:     cfg,
		log:        log,
		setupModel: NewSetupModel(&cfg),
	}

	if startRunning {
		m.beginRun()
	}

	return m
}

func (m *MainModel) beginRun() {
	eng, err := engine.New(m.config, m.log)
	if err != nil {
		m.runErr = err
		m.state = StateSummary
		return
	}
	m.eng = eng

	mode := "wave"
	target := targetSummary(m.config)
	expected := time.Duration(m.config.Duration) * time.Second
	if m.config.ReplayFile != "" {
		mode = "replay"
		expected = estimateReplayDuration(m.config)
	}
	m.dashModel = NewDashModel(m.config.Title, target, mode, expected)
}

// estimateReplayDuration pre-scans the trace the same way internal/engine
// does internally, just to size the dashboard's progress bar; a failure to
// read the trace here is not fatal, RunReplay will surface it properly.
func estimateReplayDuration(cfg models.Config) time.Duration {
	events, err := replay.ReadAll(cfg.ReplayFile)
	if err != nil || len(events) == 0 {
		return 30 * time.Second
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}
	var cumulativeMs int64
	for _, ev := range events {
		cumulativeMs += ev.DelayMs
	}
	return time.Duration(float64(cumulativeMs)/speed) * time.Millisecond
}

func targetSummary(cfg models.Config) string {
	return cfg.BaseURL
}

func (m MainModel) Init() tea.Cmd {
	if m.state == StateRunning {
		return tea.Batch(m.startRun(), m.tick())
	}
	return nil
}

type runFinishedMsg struct {
	results models.Results
	err     error
}

type tickMsg time.Time

func (m MainModel) tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m MainModel) startRun() tea.Cmd {
	return func() tea.Msg {
		var results models.Results
		var err error
		if m.config.ReplayFile != "" {
			results, err = m.eng.RunReplay(context.Background())
		} else {
			results, err = m.eng.RunWave(context.Background())
		}
		return runFinishedMsg{results: results, err: err}
	}
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case StateSetup:
		updated, c := m.setupModel.Update(msg)
		if sm, ok := updated.(*SetupModel); ok {
			m.setupModel = sm
		}
		cmd = c
		if m.setupModel.current == StepDone {
			m.config = *m.setupModel.config
			m.state = StateRunning
			m.beginRun()
			return m, tea.Batch(m.startRun(), m.tick())
		}
	case StateRunning:
		switch msg := msg.(type) {
		case tickMsg:
			if m.eng != nil {
				snap := m.eng.Monitor().Snapshot()
				m.dashModel.Update(snap)
			}
			return m, m.tick()
		case runFinishedMsg:
			m.results = msg.results
			m.runErr = msg.err
			m.state = StateSummary
			m.sumModel = NewSummaryModel(m.results, m.runErr)
		}
	}

	return m, cmd
}

func (m MainModel) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	switch m.state {
	case StateSetup:
		return m.setupModel.View()
	case StateRunning:
		return m.dashModel.View()
	case StateSummary:
		return m.sumModel.View()
	default:
		return "unknown state"
	}
}

// Results exposes the finished run for the caller to persist/print.
func (m MainModel) Results() (models.Results, error) {
	return m.results, m.runErr
}
