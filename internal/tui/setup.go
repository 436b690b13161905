package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amr9/crossloadgen/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

type Step int

const (
	StepMode Step = iota
	StepBaseURL
	StepSeries
	StepPuzzleID
	StepRPS
	StepDuration
	StepReplayFile
	StepSpeed
	StepUIDMode
	StepTitle
	StepDone
)

type stepResult struct {
	label string
	value string
}

// SetupModel is the interactive wizard that fills in a models.Config before
// a wave or replay run starts (spec.md's supplemented interactive-TUI
// feature).
type SetupModel struct {
	config  *models.Config
	current Step
	history []stepResult
	form    *huh.Form

	mode       string // "wave" or "replay"
	tempRPS    string
	tempDur    string
	tempSpeed  string
	tempUIDMod string
}

func NewSetupModel(cfg *models.Config) *SetupModel {
	m := &SetupModel{
		config:     cfg,
		current:    StepMode,
		mode:       "wave",
		tempRPS:    "10",
		tempDur:    "30",
		tempSpeed:  "1.0",
		tempUIDMod: "random",
	}
	m.nextForm()
	return m
}

func (m *SetupModel) nextForm() {
	neon := MakeGridTheme()

	switch m.current {
	case StepMode:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run mode").
				Options(huh.NewOption("Synthetic wave", "wave"), huh.NewOption("Trace replay", "replay")).
				Value(&m.mode),
		)).WithTheme(neon)
	case StepBaseURL:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Target base URL").
				Placeholder("https://crosswords.example.com").
				Value(&m.config.BaseURL).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http") {
						return fmt.Errorf("must start with http")
					}
					return nil
				}),
		)).WithTheme(neon)
	case StepSeries:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Series").Value(&m.config.Series),
		)).WithTheme(neon)
	case StepPuzzleID:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Puzzle ID").Value(&m.config.PuzzleID),
		)).WithTheme(neon)
	case StepRPS:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Requests per second").Value(&m.tempRPS),
		)).WithTheme(neon)
	case StepDuration:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Duration (seconds)").Value(&m.tempDur),
		)).WithTheme(neon)
	case StepReplayFile:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Replay trace path").Value(&m.config.ReplayFile),
		)).WithTheme(neon)
	case StepSpeed:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Replay speed multiplier").Value(&m.tempSpeed),
		)).WithTheme(neon)
	case StepUIDMode:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Virtual user identity").
				Options(
					huh.NewOption("Random per journey", "random"),
					huh.NewOption("Fixed pool", "pool"),
				).
				Value(&m.tempUIDMod),
		)).WithTheme(neon)
	case StepTitle:
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Run title").Placeholder("crossword smoke test").Value(&m.config.Title),
		)).WithTheme(neon)
	case StepDone:
		m.form = nil
	}

	if m.form != nil {
		m.form.Init()
	}
}

func (m *SetupModel) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

func (m *SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.current == StepDone {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		switch m.current {
		case StepMode:
			m.history = append(m.history, stepResult{"Mode", m.mode})
			m.current = StepBaseURL
		case StepBaseURL:
			m.history = append(m.history, stepResult{"Target", m.config.BaseURL})
			m.current = StepSeries
		case StepSeries:
			m.history = append(m.history, stepResult{"Series", m.config.Series})
			m.current = StepPuzzleID
		case StepPuzzleID:
			m.history = append(m.history, stepResult{"Puzzle ID", m.config.PuzzleID})
			if m.mode == "wave" {
				m.current = StepRPS
			} else {
				m.current = StepReplayFile
			}
		case StepRPS:
			m.history = append(m.history, stepResult{"RPS", m.tempRPS})
			m.current = StepDuration
		case StepDuration:
			m.history = append(m.history, stepResult{"Duration", m.tempDur + "s"})
			rps, _ := strconv.Atoi(m.tempRPS)
			dur, _ := strconv.Atoi(m.tempDur)
			m.config.RPS = rps
			m.config.Duration = dur
			m.current = StepUIDMode
		case StepReplayFile:
			m.history = append(m.history, stepResult{"Trace", m.config.ReplayFile})
			m.current = StepSpeed
		case StepSpeed:
			m.history = append(m.history, stepResult{"Speed", m.tempSpeed + "x"})
			speed, err := strconv.ParseFloat(m.tempSpeed, 64)
			if err != nil || speed <= 0 {
				speed = 1.0
			}
			m.config.Speed = speed
			m.current = StepUIDMode
		case StepUIDMode:
			m.history = append(m.history, stepResult{"UID mode", m.tempUIDMod})
			if m.tempUIDMod == "pool" {
				m.config.UIDMode = models.UIDModePool
				m.config.UIDPoolSize = 100
			} else {
				m.config.UIDMode = models.UIDModeRandom
			}
			m.current = StepTitle
		case StepTitle:
			m.history = append(m.history, stepResult{"Title", m.config.Title})
			m.current = StepDone
		}

		if m.current != StepDone {
			m.nextForm()
			return m, m.form.Init()
		}
	}

	return m, cmd
}

func (m *SetupModel) View() string {
	var s strings.Builder

	logo := bannerStyle.Render(bannerText)
	subtitle := taglineStyle.Render("Crossword load generator")
	s.WriteString(frameStyle.Render(logo + subtitle))
	s.WriteString("\n\n")

	for _, h := range m.history {
		s.WriteString(fmt.Sprintf("  %s %s %s\n",
			checkmarkStyle.Render("✓"), mutedStyle.Render(h.label+":"), answerStyle.Render(h.value)))
	}

	if m.form != nil {
		if len(m.history) > 0 {
			s.WriteString("\n")
		}
		s.WriteString(stepHeaderStyle.Render(fmt.Sprintf("› Step %d", len(m.history)+1)))
		s.WriteString("\n")
		s.WriteString(m.form.View())
	} else {
		s.WriteString("\n" + emphasisStyle.Render("🚀 Ready! Press Enter to start..."))
	}

	return s.String()
}
