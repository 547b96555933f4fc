// Package connection owns the backend configuration and the handshake that
// moves the panel from Disconnected to Connected.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/five82/sdpanel/internal/sdapi"
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "disconnected"
	}
}

var (
	// ErrSuperseded is returned by a Connect that a newer Connect or a
	// Disconnect overtook. Its results were discarded.
	ErrSuperseded = errors.New("connection attempt superseded")
	// ErrNotConnected is returned by operations that need a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrProbeFailed is the reason recorded when the connectivity probe fails.
	ErrProbeFailed = errors.New("could not connect to backend")
)

// Backend is the subset of the sdapi client the manager drives.
type Backend interface {
	Configure(cfg sdapi.BackendConfig) error
	TestConnection(ctx context.Context) bool
	ListModels(ctx context.Context) ([]sdapi.ModelInfo, error)
	ListSamplers(ctx context.Context) ([]sdapi.SamplerInfo, error)
	CurrentModel(ctx context.Context) (string, error)
	SetModel(ctx context.Context, name string) error
}

// Status is a copy of the manager's observable state.
type Status struct {
	State        State
	Reason       string
	Config       sdapi.BackendConfig
	Models       []sdapi.ModelInfo
	Samplers     []sdapi.SamplerInfo
	CurrentModel string
}

// Manager serializes connection state. Connect calls follow last-call-wins.
type Manager struct {
	backend Backend
	log     logrus.FieldLogger

	mu       sync.RWMutex
	seq      uint64
	cancel   context.CancelFunc
	state    State
	reason   string
	config   sdapi.BackendConfig
	models   []sdapi.ModelInfo
	samplers []sdapi.SamplerInfo
	current  string
}

// NewManager returns a Disconnected manager.
func NewManager(backend Backend, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		backend: backend,
		log:     log.WithField("component", "connection"),
	}
}

type catalog struct {
	models   []sdapi.ModelInfo
	samplers []sdapi.SamplerInfo
	current  string
}

// Connect runs the handshake against cfg. On success the manager is
// Connected and cfg becomes the active config. On failure the state is Error
// and nothing fetched is kept.
func (m *Manager) Connect(ctx context.Context, cfg sdapi.BackendConfig) error {
	normalized, err := cfg.Normalize()
	if err != nil {
		m.fail(m.begin(nil), err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	seq := m.begin(cancel)

	if err := m.backend.Configure(normalized); err != nil {
		m.fail(seq, err)
		return err
	}

	log := m.log.WithField("endpoint", normalized.Endpoint)
	log.Info("connecting")

	if !m.backend.TestConnection(ctx) {
		if m.fail(seq, ErrProbeFailed) {
			log.Warn("connectivity probe failed")
			return ErrProbeFailed
		}
		return ErrSuperseded
	}

	cat, err := m.fetchCatalog(ctx)
	if err != nil {
		if m.fail(seq, err) {
			log.WithError(err).Warn("handshake failed")
			return fmt.Errorf("handshake: %w", err)
		}
		return ErrSuperseded
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return ErrSuperseded
	}
	m.state = Connected
	m.reason = ""
	m.config = normalized
	m.models = cat.models
	m.samplers = cat.samplers
	m.current = cat.current
	m.cancel = nil
	log.WithFields(logrus.Fields{
		"models":   len(cat.models),
		"samplers": len(cat.samplers),
		"model":    cat.current,
	}).Info("connected")
	return nil
}

// Disconnect drops the connection and the catalog caches. The remembered
// config is kept so the UI can offer it again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = Disconnected
	m.reason = ""
	m.models = nil
	m.samplers = nil
	m.current = ""
	m.log.Info("disconnected")
}

// Refresh re-fetches models, samplers and the current model. On failure the
// previous catalog is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	m.mu.RLock()
	seq := m.seq
	m.mu.RUnlock()

	cat, err := m.fetchCatalog(ctx)
	if err != nil {
		m.log.WithError(err).Warn("catalog refresh failed")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq || m.state != Connected {
		return ErrSuperseded
	}
	m.models = cat.models
	m.samplers = cat.samplers
	m.current = cat.current
	return nil
}

// SelectModel switches the backend's loaded checkpoint.
func (m *Manager) SelectModel(ctx context.Context, name string) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if err := m.backend.SetModel(ctx, name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = name
	m.log.WithField("model", name).Info("model selected")
	return nil
}

// Restore seeds the remembered config and model from persisted state. The
// manager stays Disconnected; a handshake is still required.
func (m *Manager) Restore(cfg sdapi.BackendConfig, currentModel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	m.current = currentModel
}

// Status returns a copy of the observable state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:        m.state,
		Reason:       m.reason,
		Config:       m.config,
		Models:       append([]sdapi.ModelInfo(nil), m.models...),
		Samplers:     append([]sdapi.SamplerInfo(nil), m.samplers...),
		CurrentModel: m.current,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the last handshake succeeded.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// begin starts a new attempt and cancels any older one.
func (m *Manager) begin(cancel context.CancelFunc) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.state = Connecting
	m.reason = ""
	return m.seq
}

// fail records err when seq is still the latest attempt.
func (m *Manager) fail(seq uint64, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return false
	}
	m.state = Error
	m.reason = err.Error()
	m.models = nil
	m.samplers = nil
	m.current = ""
	m.cancel = nil
	return true
}

func (m *Manager) fetchCatalog(ctx context.Context) (catalog, error) {
	var cat catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		models, err := m.backend.ListModels(gctx)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		cat.models = models
		return nil
	})
	g.Go(func() error {
		samplers, err := m.backend.ListSamplers(gctx)
		if err != nil {
			return fmt.Errorf("list samplers: %w", err)
		}
		cat.samplers = samplers
		return nil
	})
	g.Go(func() error {
		current, err := m.backend.CurrentModel(gctx)
		if err != nil {
			return fmt.Errorf("current model: %w", err)
		}
		cat.current = current
		return nil
	})
	if err := g.Wait(); err != nil {
		return catalog{}, err
	}
	return cat, nil
}
