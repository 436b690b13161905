package tui

import (
	"github.com/amr9/crossloadgen/pkg/models"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Palette for the setup wizard, live dashboard and summary screen.
var (
	gridCyan     = lipgloss.Color("#00FFFF") // grid chrome: banners, frames, elapsed time
	clueMagenta  = lipgloss.Color("#FF6B9D") // secondary accent: form focus, emphasis, answers
	solvedGreen  = lipgloss.Color("#00FF88") // success: checkmarks, OK counters
	mutedGray    = lipgloss.Color("241")     // de-emphasized labels and captions

	bannerStyle = lipgloss.NewStyle().
			Foreground(gridCyan).
			Bold(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gridCyan).
			Padding(0, 1)

	taglineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true).
			MarginLeft(1)

	emphasisStyle = lipgloss.NewStyle().Foreground(clueMagenta)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedGray)
	checkmarkStyle = lipgloss.NewStyle().Foreground(solvedGreen)

	stepHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#00AAFF")).
				Bold(true).
				MarginTop(1)

	answerStyle = lipgloss.NewStyle().
			Foreground(clueMagenta).
			Bold(true)

	okStyle     = lipgloss.NewStyle().Foreground(solvedGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	noticeStyle = lipgloss.NewStyle().Foreground(gridCyan)

	metricLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginRight(2)
	metricValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)

	ruleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const bannerText = "⚡ crossloadgen"

// MakeGridTheme builds a huh form theme matching the dashboard's palette.
func MakeGridTheme() *huh.Theme {
	t := huh.ThemeCharm()
	t.Focused.Title = t.Focused.Title.Foreground(gridCyan).Bold(true)
	t.Focused.Description = t.Focused.Description.Foreground(mutedGray)
	t.Focused.Base = t.Focused.Base.BorderForeground(clueMagenta)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(clueMagenta)
	t.Focused.TextInput.Placeholder = t.Focused.TextInput.Placeholder.Foreground(lipgloss.Color("240"))
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(solvedGreen).SetString("› ")
	t.Focused.Option = t.Focused.Option.Foreground(lipgloss.Color("250"))
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(gridCyan).Bold(true)
	return t
}

// errorKindStyle colors a failure by its classified kind (§7), so a run
// summary's failure breakdown reads at a glance instead of every kind
// rendering in the same generic red.
func errorKindStyle(kind models.ErrorKind) lipgloss.Style {
	switch kind {
	case models.ErrTransport:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800"))
	case models.ErrProtocol:
		return failStyle
	case models.ErrParse:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#AA66FF"))
	case models.ErrLogic:
		return warnStyle
	case models.ErrSessionUnavailable:
		return emphasisStyle
	default:
		return mutedStyle
	}
}
