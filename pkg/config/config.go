package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envConfigPath      = "N8NPIPE_CONFIG"
	envAuthHeaderValue = "N8NPIPE_AUTH_HEADER_VALUE"
	envServerAddress   = "N8NPIPE_SERVER_ADDRESS"

	// WebhookEnvProduction selects the live n8n webhook segment.
	WebhookEnvProduction = "production"
	// WebhookEnvTest selects the n8n test webhook segment.
	WebhookEnvTest = "test"

	minTimeoutSeconds = 1
	maxTimeoutSeconds = 600
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Valves  Valves        `json:"valves"`
	Gateway GatewayConfig `json:"gateway"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// Valves holds the per-field connector options. The name follows the
// OpenWebUI convention for operator-adjustable settings.
type Valves struct {
	// Connection / endpoint.
	ServerAddress string `json:"server_address"`
	WebhookEnv    string `json:"webhook_env"`
	WebhookPath   string `json:"webhook_path"`

	// Auth / headers.
	AuthHeaderKey    string `json:"auth_header_key"`
	AuthHeaderValue  string `json:"auth_header_value"`
	ExtraHeadersJSON string `json:"extra_headers_json"`

	// Behaviour.
	TimeoutSeconds int  `json:"timeout_seconds"`
	DebugLogIDs    bool `json:"debug_log_ids"`

	// User-field inclusion. IDs are always forwarded; these gate the
	// optional profile fields only.
	IncludeUserName     bool `json:"include_user_name"`
	IncludeUserTimezone bool `json:"include_user_timezone"`
	IncludeUserLanguage bool `json:"include_user_language"`
	IncludeUserLocation bool `json:"include_user_location"`
	IncludeUserPicture  bool `json:"include_user_picture"`

	// Troubleshooting only: echo the full inbound request body in the
	// outbound payload.
	IncludeDebugRequestBody bool `json:"include_debug_request_body"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// GatewayConfig configures HTTP bind settings for the pipe service.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultValves returns the valve defaults applied before the config
// file is decoded on top of them.
func DefaultValves() Valves {
	return Valves{
		ServerAddress:       "http://n8n:5678",
		WebhookEnv:          WebhookEnvProduction,
		AuthHeaderKey:       "Authorization",
		ExtraHeadersJSON:    "{}",
		TimeoutSeconds:      120,
		IncludeUserName:     true,
		IncludeUserTimezone: true,
		IncludeUserLanguage: true,
		IncludeUserLocation: true,
	}
}

// LoadConfig resolves config.json, unmarshals it over the defaults, and
// applies environment overrides and normalization.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(configPath)
}

// LoadConfigFile loads configuration from an explicit path. Used by the
// reload watcher, which already knows the active file.
func LoadConfigFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{Valves: DefaultValves()}
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	return &cfg, nil
}

// applyEnvOverrides injects secret-bearing settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv(envAuthHeaderValue)); value != "" {
		cfg.Valves.AuthHeaderValue = value
	}

	if value := strings.TrimSpace(os.Getenv(envServerAddress)); value != "" {
		cfg.Valves.ServerAddress = value
	}
}

// normalize clamps and canonicalizes valve values instead of rejecting
// them, so a sloppy config file still yields a working connector.
func normalize(cfg *Config) {
	if cfg.Valves.TimeoutSeconds < minTimeoutSeconds {
		cfg.Valves.TimeoutSeconds = minTimeoutSeconds
	}
	if cfg.Valves.TimeoutSeconds > maxTimeoutSeconds {
		cfg.Valves.TimeoutSeconds = maxTimeoutSeconds
	}

	if strings.ToLower(strings.TrimSpace(cfg.Valves.WebhookEnv)) == WebhookEnvTest {
		cfg.Valves.WebhookEnv = WebhookEnvTest
	} else {
		cfg.Valves.WebhookEnv = WebhookEnvProduction
	}

	if strings.TrimSpace(cfg.Valves.AuthHeaderKey) == "" {
		cfg.Valves.AuthHeaderKey = "Authorization"
	}
}

// FindConfigPath resolves the active config file location.
//
// Precedence is N8NPIPE_CONFIG first, then cwd-local fallback paths.
func FindConfigPath() (string, error) {
	return findConfigPath()
}

func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
