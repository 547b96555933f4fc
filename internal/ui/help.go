package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}

var helpSections = []helpSection{
	{
		title: "Navigation",
		items: []helpItem{
			{"1-4", "Generate/Connection/Gallery/Logs"},
			{"tab", "Cycle views"},
			{"j/k", "Move down/up"},
			{"esc", "Back to generate"},
		},
	},
	{
		title: "Generate",
		items: []helpItem{
			{"enter", "Edit field"},
			{"h/l", "Step value or sampler"},
			{"r", "Generate"},
			{"x", "Interrupt"},
			{"s", "Random seed"},
			{"R", "Reset parameters"},
		},
	},
	{
		title: "Connection",
		items: []helpItem{
			{"enter", "Edit field / use model"},
			{"c", "Connect"},
			{"d", "Disconnect"},
			{"u", "Refresh models"},
		},
	},
	{
		title: "Gallery",
		items: []helpItem{
			{"enter", "Reuse parameters"},
			{"d", "Remove image"},
			{"C", "Clear gallery"},
		},
	},
	{
		title: "General",
		items: []helpItem{
			{"space", "Follow logs"},
			{"T", "Cycle theme"},
			{"?", "Toggle help"},
			{"q/ctrl+c", "Quit"},
		},
	},
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 36)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)
	for i, section := range helpSections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}
		if i < len(helpSections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(48)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// renderConfirm renders a yes/no modal.
func (m Model) renderConfirm(question string) string {
	styles := m.theme.Styles()
	body := styles.Text.Bold(true).Render(question) + "\n\n" +
		styles.WarningText.Render("y") + styles.MutedText.Render(" confirm   ") +
		styles.WarningText.Render("n") + styles.MutedText.Render(" cancel")
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Danger)).
		Padding(1, 2)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal.Render(body))
}
