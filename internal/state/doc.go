// Package state is the single place the UI and the CLI talk to.
//
// # Overview
//
// Store owns one connection.Manager, one generation.Session and one
// gallery.Store, and exposes their operations plus a Snapshot for rendering:
//
//	UI tick / CLI command            Store
//	┌────────────────────┐          ┌──────────────────────────┐
//	│ store.Snapshot()   │─────────→│ connection.Manager       │
//	│ store.Connect()    │          │ generation.Session ──┐   │
//	│ store.Generate()   │          │ gallery.Store ←──────┘   │
//	│ store.RemoveImage()│          │      ↓                   │
//	└────────────────────┘          │ persist.Store.Save()     │
//	                                └──────────────────────────┘
//
// # Snapshots
//
// Snapshot copies everything the UI renders: connection state and catalogs,
// working parameters, the in-flight flag, the progress snapshot, the gallery
// and the last error. Slices are fresh copies; image Data is shared with the
// gallery and must not be written to.
//
// # Persistence
//
// Every durable mutation (connect, model switch, parameter edit, generation,
// removal, clear) saves the document through the configured persist.Store.
// A failed save is logged and otherwise ignored. Load restores the document
// with the connection Disconnected.
//
// # Reconnecting mid-generation
//
// Connect and Disconnect interrupt a running generation on the backend and
// cancel the pending request on the client, so its images never reach the
// gallery.
package state
