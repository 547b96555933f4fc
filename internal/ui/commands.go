package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/sdpanel/internal/connection"
	"github.com/five82/sdpanel/internal/logtail"
	"github.com/five82/sdpanel/internal/sdapi"
	"github.com/five82/sdpanel/internal/state"
)

// tickMsg is sent periodically to refresh the snapshot.
type tickMsg time.Time

// snapshotMsg carries a fresh store snapshot.
type snapshotMsg state.Snapshot

// logsMsg carries the tail of the log file.
type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// actionMsg reports the outcome of a store operation run off the UI loop.
type actionMsg struct {
	action string
	detail string
	err    error
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func readLogsCmd(path string, limit int) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, limit)
		return logsMsg{entries: logtail.ParseLines(lines), err: err}
	}
}

func connectCmd(ctx context.Context, store *state.Store, cfg sdapi.BackendConfig) tea.Cmd {
	return func() tea.Msg {
		err := store.Connect(ctx, cfg)
		return actionMsg{action: "connect", detail: cfg.Endpoint, err: err}
	}
}

func reconnectCmd(ctx context.Context, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: "connect", err: store.Reconnect(ctx)}
	}
}

func disconnectCmd(ctx context.Context, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		store.Disconnect(ctx)
		return actionMsg{action: "disconnect"}
	}
}

func refreshModelsCmd(ctx context.Context, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: "refresh", err: store.RefreshModels(ctx)}
	}
}

func selectModelCmd(ctx context.Context, store *state.Store, name string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: "model", detail: name, err: store.SelectModel(ctx, name)}
	}
}

func generateCmd(ctx context.Context, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		images, err := store.Generate(ctx)
		return actionMsg{action: "generate", detail: fmt.Sprintf("%d image(s)", len(images)), err: err}
	}
}

func interruptCmd(ctx context.Context, store *state.Store) tea.Cmd {
	return func() tea.Msg {
		store.Interrupt(ctx)
		return actionMsg{action: "interrupt"}
	}
}

// describeAction turns an actionMsg into a status line. The bool is false
// when the message should not replace the current status.
func describeAction(msg actionMsg) (string, bool) {
	if errors.Is(msg.err, connection.ErrSuperseded) {
		return "", false
	}
	if msg.err != nil {
		return fmt.Sprintf("%s failed: %v", msg.action, msg.err), true
	}
	switch msg.action {
	case "connect":
		return strings.TrimSpace("connected " + msg.detail), true
	case "disconnect":
		return "disconnected", true
	case "refresh":
		return "models refreshed", true
	case "model":
		return "model switched to " + msg.detail, true
	case "generate":
		return "generated " + msg.detail, true
	case "interrupt":
		return "interrupt requested", true
	}
	return msg.action, true
}
