package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Editor    EditorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Sandbox   SandboxConfig
	WS        WSConfig
	Remote    RemoteConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8177"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// TransportConfig holds the host transport identity.
type TransportConfig struct {
	Name      string `envconfig:"TRANSPORT_NAME" default:"rempl-host"`
	ConnectTo string `envconfig:"TRANSPORT_CONNECT_TO" default:"rempl-env"`
	Debug     bool   `envconfig:"REMPL_DEBUG" default:"false"`
}

// EditorConfig holds workspace and persistence locations.
type EditorConfig struct {
	ServerURL     string `envconfig:"REMPL_SERVER_URL" default:"http://localhost:8177/server/client"`
	WorkspaceRoot string `envconfig:"WORKSPACE_ROOT" default:"."`
	StatePath     string `envconfig:"STATE_PATH" default:".rempl/views.yaml"`
	SettingsPath  string `envconfig:"SETTINGS_PATH" default:".rempl/settings.toml"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig holds script runtime limits.
type SandboxConfig struct {
	Timeout  time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	PoolSize int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
}

// WSConfig holds websocket endpoint limits.
type WSConfig struct {
	MessagesPerSecond float64 `envconfig:"WS_RPS" default:"200"`
	Burst             int     `envconfig:"WS_BURST" default:"400"`
}

// RemoteConfig holds rempl server client settings.
type RemoteConfig struct {
	Timeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
	Retries int           `envconfig:"REMOTE_RETRIES" default:"2"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8177",
			Host: "127.0.0.1",
		},
		Transport: TransportConfig{
			Name:      "rempl-host",
			ConnectTo: "rempl-env",
		},
		Editor: EditorConfig{
			ServerURL:     "http://localhost:8177/server/client",
			WorkspaceRoot: ".",
			StatePath:     ".rempl/views.yaml",
			SettingsPath:  ".rempl/settings.toml",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			Timeout:  5 * time.Second,
			PoolSize: 4,
		},
		WS: WSConfig{
			MessagesPerSecond: 200,
			Burst:             400,
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
			Retries: 2,
		},
	}
}
