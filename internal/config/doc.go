// Package config provides 12-factor configuration management for the rempl host.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Transport: host transport name, the environment name it accepts and debug mode
//   - Editor: default rempl server URL, workspace root and state files
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox, WS, Remote: script runtime, websocket and HTTP client limits
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, TRANSPORT_NAME, TRANSPORT_CONNECT_TO, REMPL_DEBUG
//   - REMPL_SERVER_URL, WORKSPACE_ROOT, STATE_PATH, SETTINGS_PATH
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
//   - SANDBOX_TIMEOUT, SANDBOX_POOL_SIZE, WS_RPS, WS_BURST, REMOTE_TIMEOUT, REMOTE_RETRIES
package config
