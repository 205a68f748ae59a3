package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertsConfig holds heart-rate alert rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition compares the stored reading: "bpm > 120", "bpm <= 40".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultRetentionTTL   = 24 * time.Hour
	DefaultStreamInterval = 1 * time.Second
	DefaultBackend        = BackendMemory
	DefaultSQLitePath     = "pulsebridge.db"
	DefaultRTDBPath       = "heartrate"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates incoming gRPC and REST writers.
	Auth AuthConfig `yaml:"auth"`

	// RTDBPath is the collection served by the Realtime Database compatible
	// endpoints, PUT /db/{rtdb_path}/{key}.json and GET /db/{rtdb_path}.json.
	RTDBPath string `yaml:"rtdb_path"`

	Retention RetentionConfig `yaml:"retention"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, lowercased, or the
// default "x-api-key". gRPC metadata keys are always lowercase.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

// RetentionConfig controls how long readings are kept.
type RetentionConfig struct {
	// TTL is measured from the time a reading was stored. Zero keeps
	// readings forever. Default: 24h.
	TTL time.Duration `yaml:"ttl"`
}

// StorageConfig selects where readings live.
type StorageConfig struct {
	// Backend is one of: memory | sqlite. With sqlite, readings are kept in
	// memory and written through to the database file, which is reloaded on
	// start.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// StreamConfig tunes the WebSocket broadcast.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values mean info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:  DefaultGRPCPort,
			HTTPPort:  DefaultHTTPPort,
			LogLevel:  "info",
			RTDBPath:  DefaultRTDBPath,
			Retention: RetentionConfig{TTL: DefaultRetentionTTL},
			Storage:   StorageConfig{Backend: DefaultBackend, Path: DefaultSQLitePath},
			Stream:    StreamConfig{Interval: DefaultStreamInterval},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ")
	}
	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required for mode apikey")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.RTDBPath == "" || strings.ContainsAny(s.RTDBPath, "/.") {
		return fmt.Errorf("server.rtdb_path %q must be a single non-empty path segment", s.RTDBPath)
	}
	if s.Retention.TTL < 0 {
		return fmt.Errorf("server.retention.ttl must not be negative")
	}
	switch s.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for backend sqlite")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want memory|sqlite", s.Storage.Backend)
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	return validateAlerts(s.Alerts)
}

// validateAlerts checks rule names and enums. Conditions are parsed by the
// alerts engine.
func validateAlerts(a AlertsConfig) error {
	seen := make(map[string]bool, len(a.Rules))
	for i, r := range a.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d].name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("server.alerts.rules: duplicate name %q", r.Name)
		}
		seen[r.Name] = true
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d].condition is required", i)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d].severity %q unknown: want critical|warning|info", i, r.Severity)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("server.alerts.rules[%d].cooldown must not be negative", i)
		}
	}
	for i, w := range a.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("server.alerts.webhooks[%d].url_env is required", i)
		}
	}
	return nil
}
