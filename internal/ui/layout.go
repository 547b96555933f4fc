package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutSplitWidth is the minimum width for side-by-side panels.
	LayoutSplitWidth = 120
)

// Chrome heights around the active view.
const (
	headerHeight = 2
	footerHeight = 1
)

// Log display limits.
const (
	// LogBufferLimit caps the lines kept when prefs do not say otherwise.
	LogBufferLimit = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is how often the UI re-reads the store snapshot.
	DefaultUIInterval = 250 * time.Millisecond

	// LogRefreshInterval is how often the log view re-reads the log file.
	LogRefreshInterval = 2 * time.Second
)
