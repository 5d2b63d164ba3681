// Package main is the entry point for the rempl host.
//
// The host embeds rempl client pages from a rempl server into editor views
// and serves the environment side of the rempl protocol to them. Remote
// environments can also connect over WebSocket.
//
// Architecture:
//
//	rempl server → client page → sandbox frame ⇄ host transport ⇄ editor plugin
//	                         remote environment (WebSocket) ⇅
//
// The server provides:
//   - REST API for opening, listing and closing views
//   - WebSocket endpoint joining the host transport
//   - Settings persistence (TOML) and view persistence (YAML)
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./remplhost -port 8177 -url http://localhost:8177/server/client
//
//	# Development mode (colored logs, debug level)
//	./remplhost -dev -debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, saving open views
package main
