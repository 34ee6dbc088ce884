package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorGray    = lipgloss.Color("#6272A4")
	colorWhite   = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	headerStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(colorGray).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
)

func countStyle(n int) lipgloss.Style {
	if n > 0 {
		return warnStyle
	}
	return okStyle
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderSummary draws the headline numbers of one analysis
func renderSummary(source string, res *analysisResult) string {
	out := res.Outcome
	report := out.Report

	lines := []string{
		titleStyle.Render("Analysis of " + filepath.Base(source)),
		"",
		row("run", dimStyle.Render(report.RunID.String())),
		row("rows", valueStyle.Render(fmt.Sprint(out.Ingest.Rows))),
		row("cases", valueStyle.Render(fmt.Sprint(report.CaseCount))),
		row("events", valueStyle.Render(fmt.Sprint(report.EventCount))),
		row("parse issues", countStyle(len(out.Ingest.Issues)).Render(fmt.Sprint(len(out.Ingest.Issues)))),
		row("sla violations", countStyle(len(report.SLAViolations)).Render(fmt.Sprint(len(report.SLAViolations)))),
	}

	if len(report.CommonPaths) > 0 {
		top := report.CommonPaths[0]
		lines = append(lines, row("top variant", valueStyle.Render(fmt.Sprintf("%s (%d)", top.Path, top.Count))))
	}
	if slow := report.CaseDurations.SlowestCase; slow != nil {
		lines = append(lines, row("slowest case", valueStyle.Render(fmt.Sprintf("%s, %s", slow.CaseID, formatMinutes(slow.DurationMinutes)))))
	}
	if slow := report.UserDelays.SlowestUser; slow != nil {
		lines = append(lines, row("slowest user", valueStyle.Render(fmt.Sprintf("%s, %s avg", slow.User, formatMinutes(slow.AverageMinutes)))))
	}

	if recs := out.Bundle.Recommendations; len(recs) > 0 {
		lines = append(lines, "", headerStyle.Render(fmt.Sprintf("Recommendations (%d)", len(recs))))
		for _, rec := range recs {
			lines = append(lines, "  • "+rec.CaseID+": "+rec.Summary)
		}
	}

	if len(res.Files) > 0 {
		lines = append(lines, "", headerStyle.Render("Written"))
		for _, f := range res.Files {
			lines = append(lines, dimStyle.Render("  "+f))
		}
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func formatMinutes(m float64) string {
	if m >= 120 {
		return fmt.Sprintf("%.1fh", m/60)
	}
	return fmt.Sprintf("%.0fm", m)
}
