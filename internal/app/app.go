package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/five82/sdpanel/internal/analytics"
	"github.com/five82/sdpanel/internal/config"
	"github.com/five82/sdpanel/internal/logging"
	"github.com/five82/sdpanel/internal/persist"
	"github.com/five82/sdpanel/internal/prefs"
	"github.com/five82/sdpanel/internal/sdapi"
	"github.com/five82/sdpanel/internal/state"
	"github.com/five82/sdpanel/internal/ui"
)

// AnalyticsFile holds the ledger when state is kept in a file.
const AnalyticsFile = "analytics.db"

// Options configure the sdpanel application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/sdpanel/prefs.toml
	LogLevel   string // overrides the config file when set
	Version    string
	// Logger, when set, replaces the configured log file.
	Logger *logrus.Logger
}

// Env is everything a command needs, built from the config file.
type Env struct {
	Config config.Config
	Log    *logrus.Logger
	Client *sdapi.Client
	Store  *state.Store
	Ledger *analytics.Ledger

	closers []io.Closer
}

// Open loads config, opens storage and restores the saved state. The caller
// must Close the returned Env.
func Open(ctx context.Context, opts Options) (_ *Env, err error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.LogLevel = level
	}

	env := &Env{Config: cfg}
	defer func() {
		if err != nil {
			_ = env.Close()
		}
	}()

	switch {
	case opts.Logger != nil:
		env.Log = opts.Logger
	case cfg.LogFile != "":
		logger, closer, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		env.Log = logger
		env.closers = append(env.closers, closer)
	default:
		env.Log = logging.New(io.Discard, cfg.LogLevel)
	}

	store, err := persist.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, store)

	env.Ledger, err = openLedger(store, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, env.Ledger)

	ua := "sdpanel"
	if opts.Version != "" {
		ua += "/" + opts.Version
	}
	env.Client = sdapi.NewClient(sdapi.WithUserAgent(ua))
	env.Store = state.New(env.Client, state.Options{
		Persist:           store,
		Ledger:            env.Ledger,
		GalleryLimit:      cfg.GalleryLimit,
		GenerationTimeout: cfg.GenerationTimeout,
		Logger:            env.Log,
	})
	if err := env.Store.Load(ctx); err != nil {
		return nil, err
	}

	env.Log.WithFields(logrus.Fields{
		"component": "app",
		"storage":   cfg.Storage,
		"data_dir":  cfg.DataDir,
	}).Info("sdpanel started")
	return env, nil
}

// openLedger shares the state database when there is one.
func openLedger(store persist.Store, dataDir string) (*analytics.Ledger, error) {
	if sq, ok := store.(*persist.SQLiteStore); ok {
		return analytics.New(sq.DB())
	}
	return analytics.Open(filepath.Join(dataDir, AnalyticsFile))
}

// BackendConfig picks the backend to talk to: the endpoint override, then
// the remembered connection, then the config file and environment.
func (e *Env) BackendConfig(endpoint string) sdapi.BackendConfig {
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		cfg := e.Config.Backend()
		cfg.Endpoint = endpoint
		return cfg
	}
	if remembered := e.Store.Snapshot().Config; !remembered.IsZero() {
		return remembered
	}
	return e.Config.Backend()
}

// Connect runs the handshake against BackendConfig(endpoint).
func (e *Env) Connect(ctx context.Context, endpoint string) error {
	cfg := e.BackendConfig(endpoint)
	if cfg.IsZero() {
		return sdapi.ErrNotConfigured
	}
	return e.Store.Connect(ctx, cfg)
}

// Close releases storage and the log file in reverse order.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Run boots the sdpanel TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	env, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		env.Log.WithError(err).Warn("load preferences failed")
	}

	if env.Config.AutoConnect {
		go func() {
			if err := env.Connect(ctx, ""); err != nil {
				env.Log.WithError(err).Warn("auto connect failed")
			}
		}()
		StartReconnector(ctx, env.Store, defaultReconnectInterval, env.Log)
	}

	uiErr := ui.Run(ui.Options{
		Context:   ctx,
		Store:     env.Store,
		Config:    &env.Config,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		LogPath:   env.Config.LogFile,
	})

	if err := env.Store.Save(context.WithoutCancel(ctx)); err != nil {
		env.Log.WithError(err).Warn("final save failed")
	}
	return uiErr
}
