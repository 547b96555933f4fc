package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/five82/sdpanel/internal/analytics"
	"github.com/five82/sdpanel/internal/connection"
	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/generation"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/persist"
	"github.com/five82/sdpanel/internal/sdapi"
)

const saveTimeout = 5 * time.Second

// Backend is everything the panel needs from the remote API.
type Backend interface {
	connection.Backend
	generation.Backend
}

// Recorder receives one entry per successful generation.
type Recorder interface {
	Record(ctx context.Context, e analytics.Entry) error
}

// Options configures a Store. Persist and Ledger are optional.
type Options struct {
	Persist           persist.Store
	Ledger            Recorder
	GalleryLimit      int
	GenerationTimeout time.Duration
	PollInterval      time.Duration
	Logger            logrus.FieldLogger
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Connection       connection.State
	ConnectionReason string
	Config           sdapi.BackendConfig
	Models           []sdapi.ModelInfo
	Samplers         []sdapi.SamplerInfo
	CurrentModel     string
	Params           params.Generation
	IsGenerating     bool
	Progress         *sdapi.Progress
	// Images share their Data with the gallery; treat them as read-only.
	Images      []gallery.Image
	LastError   error
	LastUpdated time.Time
}

// IsConnected reports whether the last handshake succeeded.
func (s Snapshot) IsConnected() bool {
	return s.Connection == connection.Connected
}

// Store wires the connection manager, the generation session and the gallery
// together and persists the durable part after every change.
type Store struct {
	conn    *connection.Manager
	session *generation.Session
	gallery *gallery.Store
	persist persist.Store
	ledger  Recorder
	log     logrus.FieldLogger

	saveMu sync.Mutex

	mu          sync.RWMutex
	lastModel   string
	lastError   error
	lastUpdated time.Time
}

// New builds a Store around backend. Call Load to restore saved state.
func New(backend Backend, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := gallery.New(opts.GalleryLimit)
	return &Store{
		conn: connection.NewManager(backend, log),
		session: generation.NewSession(backend, g, generation.Options{
			PollInterval: opts.PollInterval,
			Timeout:      opts.GenerationTimeout,
			Logger:       log,
		}),
		gallery:     g,
		persist:     opts.Persist,
		ledger:      opts.Ledger,
		log:         log.WithField("component", "state"),
		lastUpdated: time.Now(),
	}
}

// Load restores the saved document. The connection always starts out
// Disconnected; a fresh handshake is required.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	doc, err := s.persist.Load(ctx)
	if err != nil {
		s.record(err)
		return fmt.Errorf("load state: %w", err)
	}
	s.gallery.Replace(doc.Images)
	s.session.SetParams(doc.Params)
	s.conn.Restore(doc.Backend, doc.CurrentModel)

	s.mu.Lock()
	s.lastModel = doc.CurrentModel
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"images":   len(doc.Images),
		"endpoint": doc.Backend.Endpoint,
	}).Info("state restored")
	return nil
}

// Connect runs the handshake against cfg. A generation in flight is
// interrupted and its result discarded.
func (s *Store) Connect(ctx context.Context, cfg sdapi.BackendConfig) error {
	s.abortGeneration(ctx)
	err := s.conn.Connect(ctx, cfg)
	if errors.Is(err, connection.ErrSuperseded) {
		return err
	}
	s.record(err)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastModel = s.conn.Status().CurrentModel
	s.mu.Unlock()
	s.save()
	return nil
}

// Reconnect repeats the handshake with the remembered config.
func (s *Store) Reconnect(ctx context.Context) error {
	cfg := s.conn.Status().Config
	if cfg.IsZero() {
		err := sdapi.ErrNotConfigured
		s.record(err)
		return err
	}
	return s.Connect(ctx, cfg)
}

// Disconnect drops the connection. Parameters and gallery are kept. A
// generation in flight is interrupted and its result discarded.
func (s *Store) Disconnect(ctx context.Context) {
	s.abortGeneration(ctx)
	s.conn.Disconnect()
	s.record(nil)
}

// RefreshModels re-fetches the model and sampler catalogs.
func (s *Store) RefreshModels(ctx context.Context) error {
	err := s.conn.Refresh(ctx)
	s.record(err)
	if err == nil {
		s.mu.Lock()
		s.lastModel = s.conn.Status().CurrentModel
		s.mu.Unlock()
		s.save()
	}
	return err
}

// SelectModel switches the backend checkpoint.
func (s *Store) SelectModel(ctx context.Context, name string) error {
	err := s.conn.SelectModel(ctx, name)
	s.record(err)
	if err == nil {
		s.mu.Lock()
		s.lastModel = name
		s.mu.Unlock()
		s.save()
	}
	return err
}

// Generate submits the working parameters. It requires a live connection.
func (s *Store) Generate(ctx context.Context) ([]gallery.Image, error) {
	if !s.conn.IsConnected() {
		s.record(connection.ErrNotConnected)
		return nil, connection.ErrNotConnected
	}
	started := time.Now()
	images, err := s.session.Generate(ctx)
	// A cancelled run was aborted by Connect or Disconnect, which record
	// their own outcome.
	if errors.Is(err, generation.ErrInFlight) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	s.record(err)
	if err != nil {
		return nil, err
	}
	s.save()
	s.recordLedger(images, time.Since(started))
	return images, nil
}

// Interrupt asks the backend to stop the running generation.
func (s *Store) Interrupt(ctx context.Context) {
	s.session.Interrupt(ctx)
}

// UpdateParams merges patch into the working parameters.
func (s *Store) UpdateParams(patch params.Patch) params.Generation {
	p := s.session.UpdateParams(patch)
	s.touch()
	s.save()
	return p
}

// ResetParams restores the default parameters.
func (s *Store) ResetParams() {
	s.session.ResetParams()
	s.touch()
	s.save()
}

// RandomizeSeed picks a fresh seed.
func (s *Store) RandomizeSeed() int64 {
	seed := s.session.RandomizeSeed()
	s.touch()
	s.save()
	return seed
}

// RemoveImage deletes one gallery entry.
func (s *Store) RemoveImage(id string) bool {
	removed := s.gallery.Remove(id)
	if removed {
		s.touch()
		s.save()
	}
	return removed
}

// ClearGallery deletes every gallery entry.
func (s *Store) ClearGallery() {
	s.gallery.Clear()
	s.touch()
	s.save()
}

// ReuseParams returns the parameters an image was generated with.
func (s *Store) ReuseParams(id string) (params.Generation, bool) {
	return s.gallery.ReuseParams(id)
}

// ApplyImageParams loads an image's parameters into the working set.
func (s *Store) ApplyImageParams(id string) bool {
	p, ok := s.gallery.ReuseParams(id)
	if !ok {
		return false
	}
	s.UpdateParams(p.AsPatch())
	return true
}

// Image returns a private copy of one gallery entry.
func (s *Store) Image(id string) (gallery.Image, bool) {
	return s.gallery.Get(id)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	st := s.conn.Status()

	s.mu.RLock()
	model := s.lastModel
	lastErr := s.lastError
	updated := s.lastUpdated
	s.mu.RUnlock()

	if st.State == connection.Connected {
		model = st.CurrentModel
	}
	snap := Snapshot{
		Connection:       st.State,
		ConnectionReason: st.Reason,
		Config:           st.Config,
		Models:           st.Models,
		Samplers:         st.Samplers,
		CurrentModel:     model,
		Params:           s.session.Params(),
		IsGenerating:     s.session.IsGenerating(),
		Progress:         s.session.Progress(),
		Images:           s.gallery.List(),
		LastUpdated:      updated,
	}
	if lastErr != nil {
		snap.LastError = fmt.Errorf("%w", lastErr)
	}
	return snap
}

// Document returns the durable subset of the current state.
func (s *Store) Document() persist.Document {
	st := s.conn.Status()
	s.mu.RLock()
	model := s.lastModel
	s.mu.RUnlock()
	return persist.Document{
		Backend:      st.Config,
		Params:       s.session.Params(),
		Images:       s.gallery.List(),
		CurrentModel: model,
	}
}

// Save writes the document now. Mutating operations already do this.
func (s *Store) Save(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.persist.Save(ctx, s.Document())
}

func (s *Store) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.Save(ctx); err != nil {
		s.log.WithError(err).Warn("save state failed")
	}
}

func (s *Store) abortGeneration(ctx context.Context) {
	if !s.session.IsGenerating() {
		return
	}
	s.log.Info("interrupting generation before reconnect")
	s.session.Interrupt(ctx)
	s.session.Cancel()
}

func (s *Store) recordLedger(images []gallery.Image, elapsed time.Duration) {
	if s.ledger == nil || len(images) == 0 {
		return
	}
	first := images[0]
	p := first.Params
	entry := analytics.Entry{
		CreatedAt: first.CreatedAt,
		Model:     p.Model,
		Width:     p.Width,
		Height:    p.Height,
		Steps:     p.Steps,
		CFGScale:  p.CFGScale,
		Sampler:   p.Sampler,
		BatchSize: len(images),
		Duration:  elapsed,
		Seed:      first.Seed(),
		Prompt:    p.Prompt,
	}
	if r := first.Result; r != nil && r.Model != "" {
		entry.Model = r.Model
	}
	if entry.Model == "" {
		entry.Model = s.Snapshot().CurrentModel
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.log.WithError(err).Warn("record generation failed")
	}
}

func (s *Store) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastUpdated = time.Now()
}

func (s *Store) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdated = time.Now()
}
