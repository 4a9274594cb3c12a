package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

// Transport types accepted by TransportType.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the server settings. Field tags name the YAML key and the environment variable.
type Config struct {
	// Logging settings
	LogLevel  string `json:"log_level" env:"MCP_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"MCP_LOG_FORMAT"`

	// Transport
	TransportType string `json:"transport" env:"MCP_TRANSPORT"`
	HTTPHost      string `json:"http_host" env:"MCP_HTTP_HOST"`
	HTTPPort      int    `json:"http_port" env:"MCP_HTTP_PORT"`

	// Salesforce CLI
	SFBinary string `json:"sf_binary" env:"MCP_SF_BINARY"`
	// AllowedOrgs lists usernames, aliases or one of the ALLOW_ALL_ORGS, DEFAULT_TARGET_ORG and
	// DEFAULT_TARGET_DEV_HUB tokens.
	AllowedOrgs []string `json:"allowed_orgs" env:"MCP_ALLOWED_ORGS"`

	// Metrics endpoint
	TelemetryEnabled bool `json:"telemetry_enabled" env:"MCP_TELEMETRY_ENABLED"`
	TelemetryPort    int  `json:"telemetry_port" env:"MCP_TELEMETRY_PORT"`

	// Service identification
	ServiceName    string `json:"service_name" env:"MCP_SERVICE_NAME"`
	ServiceVersion string `json:"service_version" env:"MCP_SERVICE_VERSION"`
}

// Load builds the configuration from defaults, then the optional YAML file, then the optional
// .env file, then MCP_* environment variables, and validates the result.
func Load(configFile, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	// Load environment file if specified
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "console",
		TransportType:    TransportStdio,
		HTTPHost:         "localhost",
		HTTPPort:         8080,
		SFBinary:         "sf",
		AllowedOrgs:      nil,
		TelemetryEnabled: false,
		TelemetryPort:    9090,
		ServiceName:      "deploy-assist-mcp",
		ServiceVersion:   "dev",
	}
}

// LoadFile overlays the keys present in a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("MCP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MCP_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.TransportType = v
	}
	if v := os.Getenv("MCP_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("MCP_HTTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_HTTP_PORT must be an integer: %w", err)
		}
		cfg.HTTPPort = n
	}
	if v := os.Getenv("MCP_SF_BINARY"); v != "" {
		cfg.SFBinary = v
	}
	if v := os.Getenv("MCP_ALLOWED_ORGS"); v != "" {
		cfg.AllowedOrgs = SplitList(v)
	}
	if v := os.Getenv("MCP_TELEMETRY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MCP_TELEMETRY_ENABLED must be a boolean: %w", err)
		}
		cfg.TelemetryEnabled = b
	}
	if v := os.Getenv("MCP_TELEMETRY_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_TELEMETRY_PORT must be an integer: %w", err)
		}
		cfg.TelemetryPort = n
	}
	if v := os.Getenv("MCP_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("MCP_SERVICE_VERSION"); v != "" {
		cfg.ServiceVersion = v
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	if !contains([]string{"console", "json"}, c.LogFormat) {
		return fmt.Errorf("log_format must be one of: console, json")
	}
	if !contains([]string{TransportStdio, TransportHTTP}, c.TransportType) {
		return fmt.Errorf("transport must be one of: stdio, http")
	}
	if c.TransportType == TransportHTTP && !validPort(c.HTTPPort) {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if c.TelemetryEnabled && !validPort(c.TelemetryPort) {
		return fmt.Errorf("telemetry_port must be between 1 and 65535")
	}
	if c.TelemetryEnabled && c.TransportType == TransportHTTP && c.TelemetryPort == c.HTTPPort {
		return fmt.Errorf("telemetry_port must differ from http_port")
	}
	if strings.TrimSpace(c.SFBinary) == "" {
		return fmt.Errorf("sf_binary is required")
	}
	for _, org := range c.AllowedOrgs {
		if strings.TrimSpace(org) == "" {
			return fmt.Errorf("allowed_orgs must not contain blank entries")
		}
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
