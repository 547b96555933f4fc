package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sdpanel/internal/connection"
	"github.com/five82/sdpanel/internal/sdapi"
)

const (
	connRowEndpoint = iota
	connRowAPIKey
	connRowModels
)

// connForm edits the backend config and picks a model.
type connForm struct {
	selected int
	editing  bool
	endpoint textinput.Model
	apiKey   textinput.Model
	draft    sdapi.BackendConfig
}

func newConnForm(initial sdapi.BackendConfig) connForm {
	endpoint := textinput.New()
	endpoint.Prompt = ""
	endpoint.Placeholder = "http://127.0.0.1:7860"
	endpoint.CharLimit = 512

	apiKey := textinput.New()
	apiKey.Prompt = ""
	apiKey.Placeholder = "optional"
	apiKey.CharLimit = 512
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	return connForm{endpoint: endpoint, apiKey: apiKey, draft: initial}
}

func (f *connForm) rows(models int) int {
	return connRowModels + models
}

func (f *connForm) move(delta, models int) {
	f.selected += delta
	if f.selected < 0 {
		f.selected = 0
	}
	if last := f.rows(models) - 1; f.selected > last {
		f.selected = last
	}
}

func (f *connForm) active() *textinput.Model {
	if f.selected == connRowAPIKey {
		return &f.apiKey
	}
	return &f.endpoint
}

func (f *connForm) begin() tea.Cmd {
	f.editing = true
	f.endpoint.SetValue(f.draft.Endpoint)
	f.apiKey.SetValue(f.draft.Credential)
	in := f.active()
	in.CursorEnd()
	return in.Focus()
}

// commit copies the editor into the draft config.
func (f *connForm) commit() {
	switch f.selected {
	case connRowEndpoint:
		f.draft.Endpoint = strings.TrimSpace(f.endpoint.Value())
	case connRowAPIKey:
		f.draft.Credential = strings.TrimSpace(f.apiKey.Value())
	}
	f.end()
}

func (f *connForm) end() {
	f.editing = false
	f.endpoint.Blur()
	f.apiKey.Blur()
}

// selectedModel returns the model under the cursor, if any.
func (f *connForm) selectedModel(models []sdapi.ModelInfo) (sdapi.ModelInfo, bool) {
	i := f.selected - connRowModels
	if i < 0 || i >= len(models) {
		return sdapi.ModelInfo{}, false
	}
	return models[i], true
}

func (m Model) renderConnectionView(width, height int) string {
	styles := m.theme.Styles()
	snap := m.snapshot
	f := m.conn
	inner := width - 4
	labelWidth := 10

	row := func(idx int, label, value string) string {
		cursor := "  "
		if f.selected == idx {
			cursor = styles.AccentText.Render("›") + " "
		}
		return cursor + styles.MutedText.Render(padRight(label, labelWidth)) + " " + value
	}

	endpoint := styles.Text.Render(truncateMiddle(f.draft.Endpoint, inner-labelWidth-4))
	if f.draft.Endpoint == "" {
		endpoint = styles.FaintText.Render("(not set)")
	}
	key := styles.FaintText.Render("(none)")
	if f.draft.Credential != "" {
		key = styles.Text.Render(strings.Repeat("•", 8))
	}
	if f.editing {
		f.endpoint.Width = inner - labelWidth - 4
		f.apiKey.Width = inner - labelWidth - 4
		if f.selected == connRowEndpoint {
			endpoint = f.endpoint.View()
		} else {
			key = f.apiKey.View()
		}
	}

	status := styles.StatusStyle(snap.Connection.String()).Render(strings.ToUpper(snap.Connection.String()))
	if snap.Connection == connection.Connecting {
		status = m.spinner.View() + " " + status
	}
	lines := []string{
		styles.Text.Bold(true).Render("Backend"),
		row(connRowEndpoint, "Endpoint", endpoint),
		row(connRowAPIKey, "API key", key),
		"",
		"  " + styles.MutedText.Render(padRight("Status", labelWidth)) + " " + status,
	}
	if snap.ConnectionReason != "" {
		lines = append(lines, "  "+styles.DangerText.Render(truncate(snap.ConnectionReason, inner-2)))
	}
	if applied := snap.Config.Endpoint; applied != "" && applied != f.draft.Endpoint {
		lines = append(lines, "  "+styles.FaintText.Render("active: "+truncateMiddle(applied, inner-10)))
	}
	backend := styles.PanelFocus.Width(width - 2).Render(strings.Join(lines, "\n"))

	models := []string{styles.Text.Bold(true).Render(fmt.Sprintf("Models (%d)", len(snap.Models)))}
	if len(snap.Models) == 0 {
		models = append(models, styles.FaintText.Render("  connect to load the model list"))
	}
	listHeight := maxInt(height-lipgloss.Height(backend)-4, 1)
	start := 0
	if sel := f.selected - connRowModels; sel >= listHeight {
		start = sel - listHeight + 1
	}
	for i := start; i < len(snap.Models) && i < start+listHeight; i++ {
		model := snap.Models[i]
		marker := "  "
		style := styles.Text
		if model.Title == snap.CurrentModel || model.ModelName == snap.CurrentModel {
			marker = styles.SuccessText.Render("● ")
		}
		name := truncate(model.Title, inner-4)
		line := marker + style.Render(name)
		if f.selected == connRowModels+i {
			line = styles.Selected.Render(padRight("› "+name, inner))
		}
		models = append(models, line)
	}
	if len(snap.Samplers) > 0 {
		models = append(models, styles.FaintText.Render(fmt.Sprintf("%d samplers available", len(snap.Samplers))))
	}
	list := styles.Panel.Width(width - 2).Render(strings.Join(models, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, backend, list)
}
