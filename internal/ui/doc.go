// Package ui provides the Bubble Tea terminal interface for sdpanel.
//
// # Views
//
//   - Generate (1): the working parameters, inline editing, progress of the
//     running job and the latest result
//   - Connection (2): endpoint and API key, connection state, model list
//   - Gallery (3): stored images newest first, with details and parameter reuse
//   - Logs (4): tail of the sdpanel log file
//
// # Data flow
//
// The model never talks to the backend directly. A tick re-reads
// state.Store.Snapshot, and slow operations (connect, generate, model
// switches) run as tea.Cmds that report back with an actionMsg. Cheap
// mutations such as parameter edits call the store inline and re-read the
// snapshot right away.
//
// # Themes
//
// Nightfox, Kanagawa and Slate are built in. T cycles them and the choice is
// saved to the preferences file.
package ui
