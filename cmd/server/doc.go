// Command server runs the webterm host bridge.
//
// It manages terminal buffers. Each buffer is a terminal-server child
// process plus the page that renders it. Hosts drive buffers over HTTP
// and receive notifications on the /events websocket.
//
// Configuration comes from environment variables, then the TOML or YAML
// file named by WEBTERM_CONFIG or --config, then command line flags.
//
// Usage:
//
//	# Defaults: 127.0.0.1:8700, Chromium surface (go-rod)
//	./server
//
//	# Attach to a running browser, console logs
//	SURFACE_CHROME_URL=ws://127.0.0.1:9222 ./server --dev
//
//	# Inline-script sandbox, no browser needed
//	./server --surface sandbox
//
//	# Custom terminal-server
//	./server --terminal-server node,/opt/term/server.js
//
// Signals:
//   - SIGINT, SIGTERM: close every buffer, then exit
package main
