package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8177", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "rempl-host", cfg.Transport.Name)
	assert.Equal(t, "rempl-env", cfg.Transport.ConnectTo)
	assert.False(t, cfg.Transport.Debug)
	assert.Equal(t, "http://localhost:8177/server/client", cfg.Editor.ServerURL)
	assert.Equal(t, ".rempl/views.yaml", cfg.Editor.StatePath)
	assert.Equal(t, ".rempl/settings.toml", cfg.Editor.SettingsPath)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 4, cfg.Sandbox.PoolSize)
	assert.Equal(t, 2, cfg.Remote.Retries)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server",
			env:  map[string]string{"PORT": "9000", "HOST": "0.0.0.0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9000", cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			},
		},
		{
			name: "transport identity",
			env:  map[string]string{"TRANSPORT_NAME": "devtools-host", "TRANSPORT_CONNECT_TO": "custom-env"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "devtools-host", cfg.Transport.Name)
				assert.Equal(t, "custom-env", cfg.Transport.ConnectTo)
			},
		},
		{
			name: "debug only",
			env:  map[string]string{"REMPL_DEBUG": "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Transport.Debug)
				assert.Equal(t, "rempl-host", cfg.Transport.Name)
			},
		},
		{
			name: "editor paths",
			env: map[string]string{
				"REMPL_SERVER_URL": "http://devbox:8177/server/client",
				"WORKSPACE_ROOT":   "/src/app",
				"STATE_PATH":       "/tmp/views.yaml",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://devbox:8177/server/client", cfg.Editor.ServerURL)
				assert.Equal(t, "/src/app", cfg.Editor.WorkspaceRoot)
				assert.Equal(t, "/tmp/views.yaml", cfg.Editor.StatePath)
				assert.Equal(t, ".rempl/settings.toml", cfg.Editor.SettingsPath)
			},
		},
		{
			name: "logging",
			env:  map[string]string{"LOG_LEVEL": "warn", "LOG_DEV": "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.True(t, cfg.Logging.Development)
			},
		},
		{
			name: "rate limit disabled",
			env:  map[string]string{"RATE_LIMIT_RPS": "1000", "RATE_LIMIT_ENABLED": "false"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1000, cfg.RateLimit.RequestsPerSecond)
				assert.Equal(t, 200, cfg.RateLimit.Burst)
				assert.False(t, cfg.RateLimit.Enabled)
			},
		},
		{
			name: "sandbox and remote durations",
			env: map[string]string{
				"SANDBOX_TIMEOUT":   "250ms",
				"SANDBOX_POOL_SIZE": "8",
				"REMOTE_TIMEOUT":    "1m",
				"REMOTE_RETRIES":    "0",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.Timeout)
				assert.Equal(t, 8, cfg.Sandbox.PoolSize)
				assert.Equal(t, time.Minute, cfg.Remote.Timeout)
				assert.Equal(t, 0, cfg.Remote.Retries)
			},
		},
		{
			name: "websocket limits",
			env:  map[string]string{"WS_RPS": "12.5", "WS_BURST": "25"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 12.5, cfg.WS.MessagesPerSecond)
				assert.Equal(t, 25, cfg.WS.Burst)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "SANDBOX_TIMEOUT", value: "soon"},
		{key: "RATE_LIMIT_ENABLED", value: "maybe"},
		{key: "SANDBOX_POOL_SIZE", value: "four"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
