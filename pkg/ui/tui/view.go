package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"imgscraper/pkg/ui"
)

const logo = `╦╔╦╗╔═╗╔═╗╔═╗╦═╗╔═╗╔═╗╔═╗╦═╗
║║║║║ ╦╚═╗║  ╠╦╝╠═╣╠═╝║╣ ╠╦╝
╩╩ ╩╚═╝╚═╝╚═╝╩╚═╩ ╩╩  ╚═╝╩╚═`

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	half := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(half),
		m.renderItemsPanel(half),
	)
	right := m.renderLogsPanel(half)

	sections := []string{
		logoStyle.Width(m.width).Render(logo),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")

	status := m.spinner.View() + " " + m.status
	if m.finished {
		if m.reason.Success() {
			status = successStyle.Render("✓ " + m.status)
		} else {
			status = errorStyle.Render("✗ " + m.status)
		}
	}

	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
	}
	stats := []string{
		row("Target:", m.target),
		status,
		"",
		row("Found:", fmt.Sprintf("%d images", m.tally.Found)),
		row("Saved:", fmt.Sprintf("%d (%s)", m.tally.Downloaded, ui.FormatBytes(m.tally.Bytes))),
		row("Skipped:", fmt.Sprintf("%d existing", m.tally.Skipped)),
		row("Elapsed:", ui.FormatDuration(time.Since(m.tally.StartTime))),
		row("Rate:", fmt.Sprintf("%.1f/min", m.tally.Rate())),
	}
	if m.tally.Failed > 0 {
		stats = append(stats, warningStyle.Render(fmt.Sprintf("%d failed", m.tally.Failed)))
	}
	stats = append(stats, "", m.bar.ViewAs(m.Ratio()))

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m Model) renderItemsPanel(width int) string {
	title := titleStyle.Render(" IMAGES ")

	recent := m.RecentItems(m.maxRow)
	if len(recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Nothing found yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	if pending := m.Pending(); pending > 0 {
		rows = append(rows, warningStyle.Render(fmt.Sprintf("⏳ %d downloading", pending)))
	}
	for _, it := range recent {
		style, marker := itemStyle(it.State)
		rows = append(rows, style.Render(truncate(marker+" "+it.Filename, width-6)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No events yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit (stops the run)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Markers:
    ⏳  downloading   ✓  saved   =  already on disk   ✗  failed
`
	return panelStyle.Width(m.width).Render(help)
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
