package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/amr9/crossloadgen/internal/aggregator"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var dashBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// DashModel is the live view shown while a wave or replay run is in flight.
type DashModel struct {
	title    string
	target   string
	mode     string
	expected time.Duration
	start    time.Time
	progress progress.Model
	snapshot aggregator.LiveSnapshot
	rpsHist  []int
	tick     int
}

func NewDashModel(title, target, mode string, expected time.Duration) *DashModel {
	p := progress.New(
		progress.WithScaledGradient("#00FFFF", "#FF6B9D"),
		progress.WithoutPercentage(),
	)
	return &DashModel{
		title:    title,
		target:   target,
		mode:     mode,
		expected: expected,
		start:    time.Now(),
		progress: p,
	}
}

func (m *DashModel) Init() tea.Cmd { return nil }

func (m *DashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if snap, ok := msg.(aggregator.LiveSnapshot); ok {
		m.snapshot = snap
		m.tick++
		m.rpsHist = append(m.rpsHist, int(snap.RPS))
		if len(m.rpsHist) > 20 {
			m.rpsHist = m.rpsHist[len(m.rpsHist)-20:]
		}
	}
	return m, nil
}

func (m *DashModel) View() string {
	var s strings.Builder

	logo := bannerStyle.Render(bannerText)
	s.WriteString(frameStyle.Render(logo + "  " + taglineStyle.Render(m.title)))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("🎯 %s  %s\n\n",
		noticeStyle.Render(m.target),
		mutedStyle.Render(fmt.Sprintf("│ mode: %s", m.mode))))

	elapsed := time.Since(m.start)
	pct := 0.0
	if m.expected > 0 {
		pct = float64(elapsed) / float64(m.expected)
	}
	if pct > 1.0 {
		pct = 1.0
	}
	remaining := m.expected - elapsed
	if remaining < 0 {
		remaining = 0
	}

	s.WriteString(ruleStyle.Render(strings.Repeat("━", 60)))
	s.WriteString("\n")
	s.WriteString(m.progress.ViewAs(pct))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s / %s  (remaining: %s)\n",
		bannerStyle.Render(elapsed.Round(time.Second).String()),
		m.expected.Round(time.Second).String(),
		warnStyle.Render(remaining.Round(time.Second).String())))
	s.WriteString(ruleStyle.Render(strings.Repeat("━", 60)))
	s.WriteString("\n\n")

	box1 := dashBoxStyle.Copy().BorderForeground(gridCyan).Width(24).Render(fmt.Sprintf(
		"%s\n%s %s\n%s",
		noticeStyle.Bold(true).Render("📈 Throughput"),
		metricLabelStyle.Render("RPS:"),
		metricValueStyle.Render(fmt.Sprintf("%.1f", m.snapshot.RPS)),
		renderSparkline(m.rpsHist),
	))

	box2 := dashBoxStyle.Copy().BorderForeground(clueMagenta).Width(30).Render(fmt.Sprintf(
		"%s\n%s %s\n%s %s\n%s %s",
		warnStyle.Bold(true).Render("⏱️  Latency"),
		metricLabelStyle.Render("P50:"), metricValueStyle.Render(fmtDuration(m.snapshot.P50)),
		metricLabelStyle.Render("P95:"), metricValueStyle.Render(fmtDuration(m.snapshot.P95)),
		metricLabelStyle.Render("Max:"), metricValueStyle.Render(fmtDuration(m.snapshot.Max)),
	))

	failBoxStyle := okStyle
	if m.snapshot.Failure > 0 {
		failBoxStyle = warnStyle
	}
	if m.snapshot.SuccessRate < 90 && m.snapshot.Requests > 0 {
		failBoxStyle = failStyle
	}
	box3 := dashBoxStyle.Copy().BorderForeground(solvedGreen).Width(28).Render(fmt.Sprintf(
		"%s\n%s %s\n%s %s\n%s %s",
		okStyle.Bold(true).Render("✅ Results"),
		metricLabelStyle.Render("Total:"), metricValueStyle.Render(fmt.Sprintf("%d", m.snapshot.Requests)),
		metricLabelStyle.Render("OK:"), okStyle.Render(fmt.Sprintf("%d", m.snapshot.Success)),
		metricLabelStyle.Render("Fail:"), failBoxStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.snapshot.Failure, 100-m.snapshot.SuccessRate)),
	))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, box1, box2, box3))
	s.WriteString("\n")

	return s.String()
}
