package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("relrun • %d action(s)", m.total))
	sections = append(sections, title)

	sections = append(sections, sectionStyle.Render("Progress"), renderProgress(m.completed, m.total))

	if len(m.sequence) > 0 {
		sections = append(sections, sectionStyle.Render("Actions"))
		sections = append(sections, m.renderRows())
	}

	if m.finished {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(m.renderSummary()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderRows() string {
	var lines []string
	for i, action := range m.sequence {
		icon := StatusIcon(m.status[i])
		line := fmt.Sprintf(" %s %3d  %s", icon, i, action)
		if err := m.errs[i]; err != nil {
			line = fmt.Sprintf("%s — %s", line, err)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSummary() string {
	switch {
	case m.cancelled:
		return "cancelled by user"
	case m.completed < m.total:
		return fmt.Sprintf("stopped after %d/%d actions", m.completed, m.total)
	default:
		return fmt.Sprintf("completed %d/%d actions", m.completed, m.total)
	}
}

func renderProgress(completed, total int) string {
	if total == 0 {
		return progressEmptyStyle.Render("(nothing planned)")
	}
	const width = 30
	filled := width * completed / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d/%d", progressBarStyle.Render(bar), completed, total)
}

// StatusIcon returns the glyph representing a row's status.
func StatusIcon(status RowStatus) string {
	switch status {
	case RowDone:
		return successStyle.Render("✓")
	case RowRunning:
		return runningStyle.Render("⏳")
	case RowFailed:
		return failureStyle.Render("✗")
	default:
		return pendingStyle.Render("…")
	}
}
