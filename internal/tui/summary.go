package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/amr9/crossloadgen/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
)

// SummaryModel is the final screen shown after a wave or replay run
// finishes (or fails to start).
type SummaryModel struct {
	results models.Results
	err     error
}

func NewSummaryModel(results models.Results, err error) *SummaryModel {
	return &SummaryModel{results: results, err: err}
}

func (m *SummaryModel) Init() tea.Cmd { return nil }

func (m *SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) { return m, nil }

func (m *SummaryModel) View() string {
	var s strings.Builder

	logo := bannerStyle.Render(bannerText)
	s.WriteString(frameStyle.Render(logo))
	s.WriteString("\n")
	s.WriteString(taglineStyle.Render("Crossword load generator"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(failStyle.Bold(true).Render("❌ Run failed"))
		s.WriteString("\n  " + failStyle.Render(m.err.Error()) + "\n")
		s.WriteString("\n" + mutedStyle.Render("Press Ctrl+C to exit."))
		return s.String()
	}

	r := m.results
	s.WriteString(noticeStyle.Bold(true).Render("📊 Run summary"))
	s.WriteString("\n\n")

	rows := [][]string{
		{"Total requests", fmt.Sprintf("%d", r.TotalThreads)},
		{"Success rate", fmt.Sprintf("%.2f%%", r.SuccessRate)},
		{"Failures", fmt.Sprintf("%d", r.FailureCount)},
		{"Duration", fmtDuration(time.Duration(r.TotalTimeMs) * time.Millisecond)},
	}
	for _, row := range rows {
		s.WriteString(fmt.Sprintf("  %s %s\n", metricLabelStyle.Render(fmt.Sprintf("%-16s", row[0]+":")), metricValueStyle.Render(row[1])))
	}

	s.WriteString("\n")
	s.WriteString(emphasisStyle.Render("Latency distribution:"))
	s.WriteString("\n")
	lat := [][]string{
		{"Min", fmt.Sprintf("%dms", r.MinMs)},
		{"P50", fmt.Sprintf("%dms", r.P50Ms)},
		{"P95", fmt.Sprintf("%dms", r.P95Ms)},
		{"Max", fmt.Sprintf("%dms", r.MaxMs)},
	}
	for _, row := range lat {
		s.WriteString(fmt.Sprintf("  %s %s\n", metricLabelStyle.Render(fmt.Sprintf("%-6s", row[0]+":")), metricValueStyle.Render(row[1])))
	}

	if r.Partial {
		s.WriteString("\n" + warnStyle.Render("⚠️  partial run: terminating barrier did not drain in time"))
		s.WriteString("\n")
	}

	if r.FailureCount > 0 {
		s.WriteString("\n" + emphasisStyle.Render("Failures by kind:") + "\n")
		counts := failureKindCounts(r.Records)
		for _, k := range knownErrorKinds {
			if n := counts[k]; n > 0 {
				s.WriteString(fmt.Sprintf("  %s %d\n", errorKindStyle(k).Render(fmt.Sprintf("%-20s", string(k)+":")), n))
			}
		}
	}

	if len(r.Waves) > 1 {
		s.WriteString("\n" + emphasisStyle.Render("Waves:") + "\n")
		for _, w := range r.Waves {
			s.WriteString(fmt.Sprintf("  wave %-4d ok=%-5d fail=%-5d p95=%dms\n", w.Wave, w.SuccessCount, w.FailureCount, w.P95Ms))
		}
	}

	s.WriteString("\n" + mutedStyle.Render("Press Ctrl+C to exit."))
	return s.String()
}

// knownErrorKinds fixes the display order of the failure-kind breakdown
// so it doesn't jitter between runs with the same mix of failures.
var knownErrorKinds = []models.ErrorKind{
	models.ErrTransport,
	models.ErrProtocol,
	models.ErrParse,
	models.ErrLogic,
	models.ErrSessionUnavailable,
}

// errorKindOf recovers the classified kind (§7) from a step error string
// that starts with a known kind followed by ":" or " error" — both
// "protocol: ..." and the "protocol error: ..." form the HTTP client and
// journey executor produce. Any other string yields "".
func errorKindOf(msg string) models.ErrorKind {
	for _, k := range knownErrorKinds {
		rest, found := strings.CutPrefix(msg, string(k))
		if found && (strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, " error")) {
			return k
		}
	}
	return ""
}

// firstErrorKind returns the kind of the first failing step in a record,
// in step order, or "" if none of the steps recorded a classified error.
func firstErrorKind(rec models.CompletionRecord) models.ErrorKind {
	for _, step := range []models.StepResult{rec.Result.Step1, rec.Result.Step2, rec.Result.Step3, rec.Result.Step4} {
		if step.Error != "" {
			return errorKindOf(step.Error)
		}
	}
	return ""
}

func failureKindCounts(records []models.CompletionRecord) map[models.ErrorKind]int {
	counts := make(map[models.ErrorKind]int)
	for _, rec := range records {
		if rec.Result.Success {
			continue
		}
		counts[firstErrorKind(rec)]++
	}
	return counts
}
