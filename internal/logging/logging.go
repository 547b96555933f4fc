// Package logging builds the logrus logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultLevel applies when the configured level is empty or unknown.
const DefaultLevel = logrus.InfoLevel

// ParseLevel maps a config value to a logrus level. Unknown values fall back
// to DefaultLevel and report false.
func ParseLevel(value string) (logrus.Level, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultLevel, true
	}
	lvl, err := logrus.ParseLevel(value)
	if err != nil {
		return DefaultLevel, false
	}
	return lvl, true
}

// New returns a logger writing JSON entries to w.
func New(w io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	lvl, ok := ParseLevel(level)
	logger.SetLevel(lvl)
	if !ok {
		logger.WithField("level", level).Warn("unknown log level, using info")
	}
	return logger
}

// NewConsole returns a human-readable logger for one-shot CLI commands.
func NewConsole(w io.Writer, level string) *logrus.Logger {
	logger := New(w, level)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger
}

// OpenFile returns a logger appending to path, creating parent directories.
// The TUI owns the terminal, so interactive sessions log here only.
func OpenFile(path, level string) (*logrus.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(file, level), file, nil
}
