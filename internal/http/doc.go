// Package http provides HTTP handlers for the rempl host API.
//
// Endpoints:
//   - Health: / and /health
//   - Views: GET/POST /views, GET/DELETE /views/:id
//   - Environments: POST /broadcast
//   - Server: POST /probe
//   - Settings: GET /settings, POST /debug
//
// Example Usage:
//
//	handlers := http.NewHandlers(plugin, tr, store, client, version, wsHandler.Connections)
//	router.GET("/health", handlers.Health)
//	router.POST("/views", handlers.OpenView)
package http
