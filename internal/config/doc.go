// Package config loads the sdpanel configuration file.
//
// # Resolution
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/sdpanel/config.toml
//  3. If the file doesn't exist, every field takes its default
//  4. SDPANEL_ENDPOINT and SDPANEL_API_KEY override the file
//
// # Defaults
//
//   - Data directory: ~/.local/share/sdpanel
//   - Storage: sqlite (<data_dir>/sdpanel.db)
//   - Log file: <data_dir>/sdpanel.log
//   - Log level: info
//   - Gallery limit: 100 images (also the maximum; larger values are capped)
//   - Generation timeout: none
//   - Auto connect: off
//
// # TOML Format
//
//	endpoint = "http://gpu-box:7860"
//	api_key = ""
//	data_dir = "~/.local/share/sdpanel"
//	storage = "sqlite"            # or "file"
//	log_level = "info"
//	gallery_limit = 100
//	generation_timeout = "10m"
//	auto_connect = false
//
// Values are trimmed; blank strings count as unset. A malformed file, an
// unknown storage kind or an unparseable timeout is an error.
package config
