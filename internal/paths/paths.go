// Package paths resolves user-supplied file locations.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand resolves a leading ~ to the home directory and returns an absolute path.
func Expand(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// MustExpand is Expand that falls back to the input on failure.
func MustExpand(path string) string {
	expanded, err := Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// Resolve expands path, or fallback when path is blank.
func Resolve(path, fallback string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return Expand(fallback)
	}
	return Expand(path)
}
