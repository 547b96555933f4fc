package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/sdpanel/internal/paths"
	"github.com/five82/sdpanel/internal/sdapi"
)

// Config is the resolved sdpanel configuration.
type Config struct {
	Endpoint          string
	APIKey            string
	DataDir           string
	Storage           string
	LogFile           string
	LogLevel          string
	GalleryLimit      int
	GenerationTimeout time.Duration
	AutoConnect       bool
}

// Environment overrides, applied after the file.
const (
	EnvEndpoint = "SDPANEL_ENDPOINT"
	EnvAPIKey   = "SDPANEL_API_KEY"
)

const (
	defaultConfigPath   = "~/.config/sdpanel/config.toml"
	defaultDataDir      = "~/.local/share/sdpanel"
	defaultStorage      = "sqlite"
	defaultLogLevel     = "info"
	defaultGalleryLimit = 100
	maxGalleryLimit     = 100
	logFileName         = "sdpanel.log"
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := paths.Resolve(path, defaultConfigPath)
	if err != nil {
		return Config{}, err
	}

	var raw struct {
		Endpoint          string `toml:"endpoint"`
		APIKey            string `toml:"api_key"`
		DataDir           string `toml:"data_dir"`
		Storage           string `toml:"storage"`
		LogFile           string `toml:"log_file"`
		LogLevel          string `toml:"log_level"`
		GalleryLimit      int    `toml:"gallery_limit"`
		GenerationTimeout string `toml:"generation_timeout"`
		AutoConnect       bool   `toml:"auto_connect"`
	}

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := Config{
		Endpoint:     strings.TrimSpace(raw.Endpoint),
		APIKey:       strings.TrimSpace(raw.APIKey),
		DataDir:      strings.TrimSpace(raw.DataDir),
		Storage:      strings.ToLower(strings.TrimSpace(raw.Storage)),
		LogFile:      strings.TrimSpace(raw.LogFile),
		LogLevel:     strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		GalleryLimit: raw.GalleryLimit,
		AutoConnect:  raw.AutoConnect,
	}

	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.DataDir = paths.MustExpand(cfg.DataDir)

	switch cfg.Storage {
	case "":
		cfg.Storage = defaultStorage
	case "sqlite", "file":
	default:
		return Config{}, fmt.Errorf("parse config: storage must be \"sqlite\" or \"file\", got %q", raw.Storage)
	}

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, logFileName)
	}
	cfg.LogFile = paths.MustExpand(cfg.LogFile)

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	switch {
	case cfg.GalleryLimit <= 0:
		cfg.GalleryLimit = defaultGalleryLimit
	case cfg.GalleryLimit > maxGalleryLimit:
		cfg.GalleryLimit = maxGalleryLimit
	}

	if t := strings.TrimSpace(raw.GenerationTimeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: generation_timeout: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("parse config: generation_timeout must not be negative")
		}
		cfg.GenerationTimeout = d
	}

	return cfg, nil
}

// Backend returns the configured endpoint and credential.
func (c Config) Backend() sdapi.BackendConfig {
	return sdapi.BackendConfig{Endpoint: c.Endpoint, Credential: c.APIKey}
}
