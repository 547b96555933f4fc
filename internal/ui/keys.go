package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewGenerate   key.Binding
	ViewConnection key.Binding
	ViewGallery    key.Binding
	ViewLogs       key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Generate view
	Edit       key.Binding
	Generate   key.Binding
	Interrupt  key.Binding
	RandomSeed key.Binding
	ResetParam key.Binding

	// Connection view
	Connect    key.Binding
	Disconnect key.Binding
	Refresh    key.Binding

	// Gallery view
	Reuse  key.Binding
	Remove key.Binding
	Clear  key.Binding

	// Logs view
	ToggleFollow key.Binding

	// Confirmation
	Confirm key.Binding
	Deny    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),

		ViewGenerate: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Generate"),
		),
		ViewConnection: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Connection"),
		),
		ViewGallery: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Gallery"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Logs"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "Up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "Down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "Decrease"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "Increase"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Bottom"),
		),

		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Edit"),
		),
		Generate: key.NewBinding(
			key.WithKeys("r", "ctrl+g"),
			key.WithHelp("r", "Generate"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Interrupt"),
		),
		RandomSeed: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Random seed"),
		),
		ResetParam: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Reset"),
		),

		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Connect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Disconnect"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Refresh models"),
		),

		Reuse: key.NewBinding(
			key.WithKeys("enter", "p"),
			key.WithHelp("enter", "Reuse params"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "Remove"),
		),
		Clear: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Clear all"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Follow"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "Confirm"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "Cancel"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Generate, k.Interrupt, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ViewGenerate, k.ViewConnection, k.ViewGallery, k.ViewLogs, k.Tab},
		{k.Up, k.Down, k.Left, k.Right, k.Top, k.Bottom},
		{k.Edit, k.Generate, k.Interrupt, k.RandomSeed, k.ResetParam},
		{k.Connect, k.Disconnect, k.Refresh},
		{k.Reuse, k.Remove, k.Clear, k.ToggleFollow},
		{k.CycleTheme, k.Help, k.Quit},
	}
}

// viewHelp returns the bindings shown in the footer for view v.
func (k keyMap) viewHelp(v View) []key.Binding {
	switch v {
	case ViewConnection:
		return []key.Binding{k.Edit, k.Connect, k.Disconnect, k.Refresh, k.Tab, k.Help}
	case ViewGallery:
		return []key.Binding{k.Reuse, k.Remove, k.Clear, k.Tab, k.Help}
	case ViewLogs:
		return []key.Binding{k.ToggleFollow, k.Top, k.Bottom, k.Tab, k.Help}
	default:
		return []key.Binding{k.Edit, k.Generate, k.Interrupt, k.RandomSeed, k.Tab, k.Help}
	}
}
