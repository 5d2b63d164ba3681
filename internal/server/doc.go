// Package server wires the rempl host together and serves its HTTP API.
//
// Components:
//   - Transport over a Window message loop
//   - Editor workspace and plugin, with views opened in sandbox frames
//   - WebSocket endpoints joining the same transport
//   - Settings store driving debug mode
//   - Prometheus metrics on /metrics
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. NewServer builds the components and routes
//  4. Start runs the message loop and restores saved views
//  5. Run serves HTTP
//  6. Shutdown saves views and settings and releases resources
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, logging.NewDefault())
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
