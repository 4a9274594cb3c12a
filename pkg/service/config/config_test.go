package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads and restores them when the test ends.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"MCP_LOG_LEVEL", "MCP_LOG_FORMAT", "MCP_TRANSPORT", "MCP_HTTP_HOST", "MCP_HTTP_PORT",
		"MCP_SF_BINARY", "MCP_ALLOWED_ORGS", "MCP_TELEMETRY_ENABLED", "MCP_TELEMETRY_PORT",
		"MCP_SERVICE_NAME", "MCP_SERVICE_VERSION",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, TransportStdio, cfg.TransportType)
	assert.Equal(t, "sf", cfg.SFBinary)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
log_level: debug
transport: http
http_port: 7000
allowed_orgs:
  - dev@example.com
  - DEFAULT_TARGET_ORG
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MCP_HTTP_PORT=7100\nMCP_SERVICE_NAME=from-dotenv\n"), 0o600))

	t.Setenv("MCP_SERVICE_NAME", "from-env")

	cfg, err := Load(configFile, envFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, TransportHTTP, cfg.TransportType)
	// .env values beat the file, real environment variables beat .env.
	assert.Equal(t, 7100, cfg.HTTPPort)
	assert.Equal(t, "from-env", cfg.ServiceName)
	assert.Equal(t, []string{"dev@example.com", "DEFAULT_TARGET_ORG"}, cfg.AllowedOrgs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("allowed_orgs: [a]\ntelemetry_enabled: false\n"), 0o600))

	t.Setenv("MCP_ALLOWED_ORGS", " b , ,c ")
	t.Setenv("MCP_TELEMETRY_ENABLED", "true")
	t.Setenv("MCP_TELEMETRY_PORT", "9191")

	cfg, err := Load(configFile, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, cfg.AllowedOrgs)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, 9191, cfg.TelemetryPort)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{
			name:    "bad port",
			env:     map[string]string{"MCP_HTTP_PORT": "eighty"},
			wantErr: "MCP_HTTP_PORT must be an integer",
		},
		{
			name:    "bad bool",
			env:     map[string]string{"MCP_TELEMETRY_ENABLED": "sometimes"},
			wantErr: "MCP_TELEMETRY_ENABLED must be a boolean",
		},
		{
			name:    "unknown yaml key",
			file:    "workspace_dir: /tmp\n",
			wantErr: "failed to parse config file",
		},
		{
			name:    "invalid level",
			env:     map[string]string{"MCP_LOG_LEVEL": "trace"},
			wantErr: "log_level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			configFile := ""
			if tt.file != "" {
				configFile = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(configFile, []byte(tt.file), 0o600))
			}

			_, err := Load(configFile, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	// a missing .env file is not an error
	_, err = Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format must be one of"},
		{"transport", func(c *Config) { c.TransportType = "sse" }, "transport must be one of"},
		{"http port", func(c *Config) { c.TransportType = TransportHTTP; c.HTTPPort = 0 }, "http_port must be between"},
		{"stdio ignores http port", func(c *Config) { c.HTTPPort = 0 }, ""},
		{"telemetry port", func(c *Config) { c.TelemetryEnabled = true; c.TelemetryPort = 70000 }, "telemetry_port must be between"},
		{"port clash", func(c *Config) {
			c.TransportType = TransportHTTP
			c.TelemetryEnabled = true
			c.TelemetryPort = c.HTTPPort
		}, "telemetry_port must differ"},
		{"sf binary", func(c *Config) { c.SFBinary = " " }, "sf_binary is required"},
		{"blank org", func(c *Config) { c.AllowedOrgs = []string{"a", ""} }, "allowed_orgs must not contain blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
