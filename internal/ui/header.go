package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var viewTitles = []struct {
	view  View
	key   string
	title string
}{
	{ViewGenerate, "1", "Generate"},
	{ViewConnection, "2", "Connection"},
	{ViewGallery, "3", "Gallery"},
	{ViewLogs, "4", "Logs"},
}

// renderHeader renders the status bar and the view tabs.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)
	compact := m.width < LayoutCompactWidth
	snap := m.snapshot

	status := snap.Connection.String()
	if snap.IsGenerating {
		status = "generating"
	}
	parts := []string{
		bg.Render("sdpanel", styles.Logo),
		styles.StatusStyle(status).Render(strings.ToUpper(status)),
	}
	if snap.IsGenerating && snap.Progress != nil {
		parts = append(parts, bg.Render(fmt.Sprintf("%3.0f%%", snap.Progress.Percent()), styles.InfoText))
	}
	if endpoint := snap.Config.Endpoint; endpoint != "" && !compact {
		parts = append(parts, bg.Render(truncateMiddle(endpoint, 40), styles.MutedText))
	}
	if snap.CurrentModel != "" {
		parts = append(parts,
			bg.Render("Model:", styles.MutedText)+bg.Space()+
				bg.Render(truncate(snap.CurrentModel, ternaryInt(compact, 24, 48)), styles.Text))
	}
	parts = append(parts,
		bg.Render("Images:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(snap.Images)), styles.Text))
	if !compact && !snap.LastUpdated.IsZero() {
		parts = append(parts, bg.Render(snap.LastUpdated.Local().Format("15:04:05"), styles.FaintText))
	}

	statusLine := bg.FillLine(bg.Join(parts, "  ")+sep, m.width)
	return lipgloss.JoinVertical(lipgloss.Left, statusLine, m.renderCommandBar())
}

// renderCommandBar renders the view tabs with the active one highlighted.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)
	tabs := make([]string, 0, len(viewTitles))
	for _, v := range viewTitles {
		label := "<" + v.key + ">" + " " + v.title
		if v.view == m.currentView {
			tabs = append(tabs, styles.Selected.Padding(0, 1).Render(label))
			continue
		}
		tabs = append(tabs, bg.Spaces(1)+bg.Render(label, styles.MutedText)+bg.Spaces(1))
	}
	return bg.FillLine(strings.Join(tabs, bg.Space()), m.width)
}

// renderFooter shows the last status message and the view's key hints.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	hints := m.help.ShortHelpView(m.keys.viewHelp(m.currentView))
	if m.status == "" {
		return styles.Footer.Width(m.width).Render(hints)
	}
	msgStyle := styles.SuccessText
	if m.statusErr {
		msgStyle = styles.DangerText
	}
	msg := msgStyle.Render(truncate(m.status, maxInt(m.width/2, 20)))
	return styles.Footer.Width(m.width).Render(msg + "  " + hints)
}

func ternaryInt(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}
