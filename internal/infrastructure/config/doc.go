// Package config provides 12-factor configuration management for webterm.
//
// Configuration is loaded from environment variables with sensible
// defaults. A TOML file named by WEBTERM_CONFIG is applied on top, and CLI
// flags in cmd/server override both.
//
// Configuration Sections:
//   - Server: HTTP host bridge settings (port, host)
//   - Logging: Log level and output format
//   - Terminal: terminal-server command, page template, theme, timings
//   - Surface: page renderer (chrome by default, or the inline-script sandbox)
//   - RateLimit: Per-IP rate limiting configuration
//
// Example file:
//
//	[terminal]
//	server_command = ["node", "/opt/webterm/server.js"]
//	dark_mode = "true"
//	poll_interval = "500ms"
package config
