package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sdpanel/internal/logtail"
)

// logState holds all log-related state.
type logState struct {
	entries []logtail.Entry
	follow  bool
	err     error
}

// initLogViewport initializes the log viewport.
func (m *Model) initLogViewport() {
	m.logViewport = viewport.New(maxInt(m.width-4, 10), maxInt(m.bodyHeight()-2, 3))
}

// updateLogViewport re-renders the log lines into the viewport.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.Width = maxInt(m.width-4, 10)
	m.logViewport.Height = maxInt(m.bodyHeight()-2, 3)
	m.logViewport.SetContent(m.formatLogs(m.logViewport.Width))
	if m.logs.follow {
		m.logViewport.GotoBottom()
	}
}

// formatLogs colors each entry by level.
func (m Model) formatLogs(width int) string {
	styles := m.theme.Styles()
	if m.logPath == "" {
		return styles.FaintText.Render("Logging to a file is disabled.")
	}
	if len(m.logs.entries) == 0 {
		if m.logs.err != nil {
			return styles.DangerText.Render("read " + m.logPath + ": " + m.logs.err.Error())
		}
		return styles.FaintText.Render("No log entries in " + m.logPath)
	}
	lines := make([]string, 0, len(m.logs.entries))
	for _, e := range m.logs.entries {
		lines = append(lines, levelStyle(styles, e.Level).Render(truncate(e.String(), width)))
	}
	return strings.Join(lines, "\n")
}

func levelStyle(styles Styles, level string) lipgloss.Style {
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		return styles.DangerText
	case "warn", "warning":
		return styles.WarningText
	case "debug", "trace":
		return styles.FaintText
	default:
		return styles.Text
	}
}

func (m Model) renderLogsView(width int) string {
	styles := m.theme.Styles()
	follow := styles.FaintText.Render("paused")
	if m.logs.follow {
		follow = styles.SuccessText.Render("following")
	}
	title := styles.Text.Bold(true).Render("Logs") + "  " + follow + "  " +
		styles.FaintText.Render(truncateMiddle(m.logPath, maxInt(width-30, 10)))
	return styles.PanelFocus.Width(width - 2).Render(title + "\n" + m.logViewport.View())
}
