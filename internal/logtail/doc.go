// Package logtail reads the tail of the sdpanel log file and parses its
// entries for display in the TUI.
//
// # Reading
//
// Read keeps a ring buffer of maxLines strings and scans the file once, so
// memory stays O(maxLines) no matter how large the log grows:
//
//	lines, err := logtail.Read(cfg.LogFile, 400)
//
// A missing file is not an error; Read returns nil, nil so a fresh install
// shows an empty log view.
//
// # Parsing
//
// The logging package writes logrus JSON entries. Parse splits one into the
// well-known keys (time, level, msg, component, error) and keeps the rest in
// Fields. Lines that are not JSON (a panic trace, a truncated write) come back
// with only Raw set; they are shown verbatim rather than dropped.
//
// Styling is left to the UI. Entry.String gives a plain rendering for the CLI
// and for tests.
package logtail
