package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/sdpanel/internal/config"
	"github.com/five82/sdpanel/internal/prefs"
	"github.com/five82/sdpanel/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewGenerate View = iota
	ViewConnection
	ViewGallery
	ViewLogs
	viewCount
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Store     *state.Store
	Config    *config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	PollTick  time.Duration
	// LogPath is the log file shown in the logs view. Empty disables it.
	LogPath string
	Now     func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	config    *config.Config
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	pollTick  time.Duration
	clock     func() time.Time

	// Components
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time

	// Status line
	status    string
	statusErr bool

	// Per-view state
	form        paramForm
	conn        connForm
	gallery     galleryState
	logs        logState
	logViewport viewport.Model
	lastLogRead time.Time

	// Overlays
	showHelp     bool
	confirmClear bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = DefaultUIInterval
	}

	userPrefs := opts.Prefs
	if userPrefs == (prefs.Prefs{}) {
		userPrefs = prefs.Default()
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}

	var snap state.Snapshot
	if opts.Store != nil {
		snap = opts.Store.Snapshot()
	}
	draft := snap.Config
	if draft.IsZero() && opts.Config != nil {
		draft = opts.Config.Backend()
	}

	m := Model{
		ctx:         ctx,
		store:       opts.Store,
		config:      opts.Config,
		prefs:       userPrefs,
		prefsPath:   prefsPath,
		logPath:     opts.LogPath,
		pollTick:    pollTick,
		clock:       clock,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		currentView: ViewGenerate,
		snapshot:    snap,
		form:        newParamForm(),
		conn:        newConnForm(draft),
		logs:        logState{follow: true},
	}
	m.applyTheme(GetTheme(userPrefs.Theme))
	m.gallery.sync(snap.Images)
	return m
}

// applyTheme rebuilds the themed components.
func (m *Model) applyTheme(t Theme) {
	m.theme = t
	m.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Info))),
	)
	m.progress = progress.New(progress.WithGradient(t.Accent, t.Success), progress.WithWidth(40))
	m.help.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning))
	m.help.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted))
	m.help.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint))
}

func (m Model) now() time.Time {
	return m.clock()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.spinner.Tick,
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.ready = true
			m.initLogViewport()
		}
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.setSnapshot(state.Snapshot(msg))
		return m, nil

	case logsMsg:
		m.logs.entries = msg.entries
		m.logs.err = msg.err
		m.updateLogViewport()
		return m, nil

	case actionMsg:
		if text, ok := describeAction(msg); ok {
			m.setStatus(text, msg.err != nil)
		}
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.confirmClear {
		return m.renderConfirm(fmt.Sprintf("Remove all %d images from the gallery?", len(m.snapshot.Images)))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderContent(),
		m.renderFooter(),
	)
}

func (m Model) renderContent() string {
	width, height := m.width, m.bodyHeight()
	var body string
	switch m.currentView {
	case ViewConnection:
		body = m.renderConnectionView(width, height)
	case ViewGallery:
		body = m.renderGalleryView(width, height)
	case ViewLogs:
		body = m.renderLogsView(width)
	default:
		body = m.renderGenerateView(width, height)
	}
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(body)
}

func (m Model) bodyHeight() int {
	return maxInt(m.height-headerHeight-footerHeight, 1)
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.currentView == ViewLogs && m.logs.follow && m.now().Sub(m.lastLogRead) >= LogRefreshInterval {
		if cmd := m.refreshLogs(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// refreshLogs reads the log tail. It is a no-op without a log file.
func (m *Model) refreshLogs() tea.Cmd {
	if m.logPath == "" {
		return nil
	}
	m.lastLogRead = m.now()
	limit := m.prefs.LogLines
	if limit <= 0 {
		limit = LogBufferLimit
	}
	return readLogsCmd(m.logPath, limit)
}

func (m *Model) setSnapshot(snap state.Snapshot) {
	m.snapshot = snap
	m.lastUpdated = m.now()
	m.gallery.sync(snap.Images)
	if !m.conn.editing {
		m.conn.move(0, len(snap.Models))
	}
}

// refresh re-reads the store after a synchronous mutation.
func (m *Model) refresh() {
	if m.store != nil {
		m.setSnapshot(m.store.Snapshot())
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) setView(v View) tea.Cmd {
	m.currentView = v
	if v == ViewLogs {
		return m.refreshLogs()
	}
	return nil
}

func (m *Model) cycleTheme() {
	m.applyTheme(GetTheme(NextTheme(m.theme.Name)))
	m.prefs.Theme = m.theme.Name
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.setStatus("save preferences: "+err.Error(), true)
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.confirmClear {
		m.confirmClear = false
		if key.Matches(msg, m.keys.Confirm) {
			m.clearGallery()
		}
		return m, nil
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.form.editing {
		return m.handleParamEditKey(msg)
	}
	if m.conn.editing {
		return m.handleConnEditKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		m.updateLogViewport()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m, m.setView((m.currentView + 1) % viewCount)
	case key.Matches(msg, m.keys.ShiftTab):
		return m, m.setView((m.currentView + viewCount - 1) % viewCount)
	case key.Matches(msg, m.keys.ViewGenerate):
		return m, m.setView(ViewGenerate)
	case key.Matches(msg, m.keys.ViewConnection):
		return m, m.setView(ViewConnection)
	case key.Matches(msg, m.keys.ViewGallery):
		return m, m.setView(ViewGallery)
	case key.Matches(msg, m.keys.ViewLogs):
		return m, m.setView(ViewLogs)
	case key.Matches(msg, m.keys.Escape):
		return m, m.setView(ViewGenerate)
	}

	switch m.currentView {
	case ViewConnection:
		return m.handleConnectionKey(msg)
	case ViewGallery:
		return m.handleGalleryKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleGenerateKey(msg)
	}
}

func (m Model) handleGenerateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.store == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		m.form.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.form.move(1)
	case key.Matches(msg, m.keys.Top):
		m.form.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.form.selected = fieldCount - 1
	case key.Matches(msg, m.keys.Edit):
		return m, m.form.begin(m.snapshot.Params)
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		dir := 1
		if key.Matches(msg, m.keys.Left) {
			dir = -1
		}
		if patch, ok := nudgePatch(m.form.selected, m.snapshot.Params, dir, m.snapshot.Samplers); ok {
			m.store.UpdateParams(patch)
			m.refresh()
		}
	case key.Matches(msg, m.keys.Generate):
		if m.snapshot.IsGenerating {
			m.setStatus("a generation is already running", true)
			return m, nil
		}
		if err := m.snapshot.Params.Validate(); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.setStatus("generating...", false)
		return m, tea.Batch(generateCmd(m.ctx, m.store), fetchSnapshotCmd(m.store))
	case key.Matches(msg, m.keys.Interrupt):
		if !m.snapshot.IsGenerating {
			return m, nil
		}
		return m, interruptCmd(m.ctx, m.store)
	case key.Matches(msg, m.keys.RandomSeed):
		seed := m.store.RandomizeSeed()
		m.setStatus(fmt.Sprintf("seed set to %d", seed), false)
		m.refresh()
	case key.Matches(msg, m.keys.ResetParam):
		m.store.ResetParams()
		m.setStatus("parameters reset", false)
		m.refresh()
	}
	return m, nil
}

func (m Model) handleParamEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form.end()
		return m, nil
	case "enter", "tab":
		patch, err := fieldPatch(m.form.selected, m.form.input.Value())
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		if m.store != nil {
			m.store.UpdateParams(patch)
			m.refresh()
		}
		m.form.end()
		if msg.String() == "tab" {
			m.form.move(1)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.form.input, cmd = m.form.input.Update(msg)
	return m, cmd
}

func (m Model) handleConnectionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.store == nil {
		return m, nil
	}
	models := m.snapshot.Models
	switch {
	case key.Matches(msg, m.keys.Up):
		m.conn.move(-1, len(models))
	case key.Matches(msg, m.keys.Down):
		m.conn.move(1, len(models))
	case key.Matches(msg, m.keys.Edit):
		if model, ok := m.conn.selectedModel(models); ok {
			m.setStatus("loading "+model.Title+"...", false)
			return m, selectModelCmd(m.ctx, m.store, model.Title)
		}
		return m, m.conn.begin()
	case key.Matches(msg, m.keys.Connect):
		if m.conn.draft.IsZero() {
			m.setStatus("set an endpoint first", true)
			return m, nil
		}
		m.setStatus("connecting to "+m.conn.draft.Endpoint+"...", false)
		return m, connectCmd(m.ctx, m.store, m.conn.draft)
	case key.Matches(msg, m.keys.Disconnect):
		return m, disconnectCmd(m.ctx, m.store)
	case key.Matches(msg, m.keys.Refresh):
		if !m.snapshot.IsConnected() {
			if m.snapshot.Config.IsZero() {
				return m, nil
			}
			m.setStatus("reconnecting...", false)
			return m, reconnectCmd(m.ctx, m.store)
		}
		return m, refreshModelsCmd(m.ctx, m.store)
	}
	return m, nil
}

func (m Model) handleConnEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.conn.end()
		return m, nil
	case "enter":
		m.conn.commit()
		return m, nil
	case "tab":
		m.conn.commit()
		if m.conn.selected == connRowEndpoint {
			m.conn.selected = connRowAPIKey
			return m, m.conn.begin()
		}
		return m, nil
	}
	var cmd tea.Cmd
	in := m.conn.active()
	*in, cmd = in.Update(msg)
	return m, cmd
}

func (m Model) handleGalleryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.store == nil {
		return m, nil
	}
	images := m.snapshot.Images
	switch {
	case key.Matches(msg, m.keys.Up):
		m.gallery.move(-1, images)
	case key.Matches(msg, m.keys.Down):
		m.gallery.move(1, images)
	case key.Matches(msg, m.keys.Top):
		m.gallery.move(-len(images), images)
	case key.Matches(msg, m.keys.Bottom):
		m.gallery.move(len(images), images)
	case key.Matches(msg, m.keys.Reuse):
		img, ok := m.gallery.selected(images)
		if !ok {
			return m, nil
		}
		if m.store.ApplyImageParams(img.ID) {
			m.setStatus("loaded parameters from image "+truncate(img.ID, 8), false)
			m.refresh()
			return m, m.setView(ViewGenerate)
		}
	case key.Matches(msg, m.keys.Remove):
		img, ok := m.gallery.selected(images)
		if ok && m.store.RemoveImage(img.ID) {
			m.setStatus("removed image "+truncate(img.ID, 8), false)
			m.refresh()
		}
	case key.Matches(msg, m.keys.Clear):
		if len(images) == 0 {
			return m, nil
		}
		if m.prefs.ConfirmClear {
			m.confirmClear = true
			return m, nil
		}
		m.clearGallery()
	}
	return m, nil
}

func (m *Model) clearGallery() {
	if m.store == nil {
		return
	}
	m.store.ClearGallery()
	m.setStatus("gallery cleared", false)
	m.refresh()
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logs.follow = !m.logs.follow
		if m.logs.follow {
			m.logViewport.GotoBottom()
			return m, m.refreshLogs()
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.logs.follow = false
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logs.follow = true
		m.logViewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	if !m.logViewport.AtBottom() {
		m.logs.follow = false
	}
	return m, cmd
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
