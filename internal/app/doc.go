// Package app is the composition root for sdpanel.
//
// # Overview
//
// Open wires configuration, logging, storage, the analytics ledger, the
// backend client and the state.Store together. The TUI (Run) and every CLI
// subcommand start from the same Env:
//
//	┌──────────────┐
//	│   Open()     │ Build the environment
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read config.toml and env overrides
//	       ├─────> logging.OpenFile()   JSON log file for the log view
//	       ├─────> persist.Open()       sqlite database or zstd state file
//	       ├─────> analytics.New/Open() Ledger, sharing the sqlite database
//	       ├─────> sdapi.NewClient()    HTTP client, unconfigured
//	       └─────> state.Store.Load()   Restore gallery, params, last backend
//
//	Run():
//	       ├─────> Env.Connect()        only with auto_connect = true
//	       ├─────> StartReconnector()   retry handshakes that ended in Error
//	       └─────> ui.Run()             Start TUI (blocks)
//
// # Choosing the backend
//
// Env.BackendConfig picks, in order: an explicit endpoint (the --endpoint
// flag), the connection remembered from the last session, then the config
// file or SDPANEL_ENDPOINT.
//
// # Reconnecting
//
// With auto_connect enabled, a background goroutine watches the connection.
// When a handshake ends in the Error state it retries with exponential
// backoff (doubling from the base interval, capped at 30s). It never undoes
// a user Disconnect and waits while a generation is in flight.
//
// # Shutdown
//
// Run saves the document one last time after the TUI exits. Env.Close closes
// the ledger, the store and the log file in reverse order of opening.
package app
