// Package prefs handles sdpanel UI preferences.
// Preferences are stored in ~/.config/sdpanel/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/sdpanel/internal/paths"
)

// Prefs holds UI preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// ConfirmClear asks before wiping the gallery.
	ConfirmClear bool `toml:"confirm_clear"`
	// LogLines is how many log lines the log view keeps.
	LogLines int `toml:"log_lines"`
}

const (
	defaultPrefsPath = "~/.config/sdpanel/prefs.toml"
	defaultTheme     = "Nightfox"
	defaultLogLines  = 400
)

// Default returns the preferences used when none are saved.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, ConfirmClear: true, LogLines: defaultLogLines}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := paths.Resolve(path, defaultPrefsPath)
	if err != nil {
		return Default(), nil
	}

	prefs := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Default(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	if prefs.LogLines <= 0 {
		prefs.LogLines = defaultLogLines
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := paths.Resolve(path, defaultPrefsPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}
