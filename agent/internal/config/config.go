package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort       = 9090
	DefaultLogLevel       = "info"
	DefaultAccess         = AccessGranted
	DefaultMetric         = "heart_rate_bpm"
	DefaultTopic          = "sensors/heartrate"
	DefaultClientID       = "pulsebridge-agent"
	DefaultPollInterval   = 1 * time.Second
	DefaultThrottleWindow = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultStaleThreshold = 3 * time.Second
	DefaultTickInterval   = 1 * time.Second
	DefaultSinkPath       = "heartrate"
	DefaultPrompt         = "Move your wrist closer to the sensor"
)

// Sensor access decisions. AccessPrompt leaves the gate pending until a
// config reload sets granted or denied.
const (
	AccessGranted = "granted"
	AccessDenied  = "denied"
	AccessPrompt  = "prompt"
)

// Config is the top-level agent configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ID identifies this agent to the store. A random UUID is generated when empty.
	ID string `yaml:"id"`

	// HTTPPort serves /healthz, /metrics and /ws/display. Zero disables it.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Sensor    SensorConfig    `yaml:"sensor"`
	Forwarder ForwarderConfig `yaml:"forwarder"`
	Liveness  LivenessConfig  `yaml:"liveness"`
	Display   DisplayConfig   `yaml:"display"`
	Sink      SinkConfig      `yaml:"sink"`
}

// SensorConfig describes where heart-rate samples come from.
type SensorConfig struct {
	// Type is one of: prometheus | mqtt | stdin.
	Type string `yaml:"type"`

	// Access is the permission decision: granted | denied | prompt.
	Access string `yaml:"access"`

	// Endpoint is the metrics URL (prometheus) or broker URL (mqtt).
	Endpoint string `yaml:"endpoint"`

	// Metric is the gauge read from a prometheus endpoint.
	Metric string `yaml:"metric"`

	// Topic and ClientID are used by the mqtt source.
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`

	// PollInterval controls how often a prometheus endpoint is read.
	PollInterval time.Duration `yaml:"poll_interval"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// ForwarderConfig tunes Sample Ingest & Throttle.
type ForwarderConfig struct {
	// ThrottleWindow is the minimum time between two sink writes.
	ThrottleWindow time.Duration `yaml:"throttle_window"`

	// WriteTimeout bounds a single sink write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Location is the IANA zone used for record keys. Empty means Local.
	Location string `yaml:"location"`
}

// TimeLocation resolves Location. An empty or "Local" value yields time.Local.
func (f ForwarderConfig) TimeLocation() (*time.Location, error) {
	if f.Location == "" || f.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(f.Location)
}

// LivenessConfig tunes the staleness monitor.
type LivenessConfig struct {
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	TickInterval   time.Duration `yaml:"tick_interval"`
}

// DisplayConfig controls the terminal display surface.
type DisplayConfig struct {
	// Output is one of: stdout | none.
	Output string `yaml:"output"`

	// Prompt is shown instead of the reading while the stream is stale.
	Prompt string `yaml:"prompt"`
}

// SinkConfig describes the remote store readings are written to.
type SinkConfig struct {
	// Type is one of: grpc | firebase | redis.
	Type string `yaml:"type"`

	// Endpoint is host:port (grpc, redis) or the database base URL (firebase).
	Endpoint string `yaml:"endpoint"`

	// Path is the collection readings are written under (RTDB path or redis
	// key prefix).
	Path string `yaml:"path"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a sensor endpoint or sink.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header carries the API key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds a bearer token (HTTP), or the database secret for the
	// firebase sink.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields. For the redis sink Username/PasswordEnv are the ACL
	// credentials.
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return lookupEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return lookupEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return lookupEnv(a.PasswordEnv)
}

// EffectiveHeader returns Header, or "x-api-key" when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// Enabled dials the grpc sink over TLS without a client certificate.
	Enabled bool `yaml:"enabled"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values mean info.
func (a AgentConfig) SlogLevel() slog.Level {
	return ParseLevel(a.LogLevel)
}

// ParseLevel maps debug|info|warn|error onto a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if cfg.Agent.ID == "" {
		cfg.Agent.ID = uuid.NewString()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
			Sensor: SensorConfig{
				Access:       DefaultAccess,
				Metric:       DefaultMetric,
				Topic:        DefaultTopic,
				ClientID:     DefaultClientID,
				PollInterval: DefaultPollInterval,
			},
			Forwarder: ForwarderConfig{
				ThrottleWindow: DefaultThrottleWindow,
				WriteTimeout:   DefaultWriteTimeout,
			},
			Liveness: LivenessConfig{
				StaleThreshold: DefaultStaleThreshold,
				TickInterval:   DefaultTickInterval,
			},
			Display: DisplayConfig{
				Output: "stdout",
				Prompt: DefaultPrompt,
			},
			Sink: SinkConfig{
				Path: DefaultSinkPath,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.HTTPPort < 0 || a.HTTPPort > 65535 {
		return fmt.Errorf("agent.http_port %d is out of range [0, 65535]", a.HTTPPort)
	}

	switch a.Sensor.Type {
	case "prometheus", "mqtt":
		if a.Sensor.Endpoint == "" {
			return fmt.Errorf("agent.sensor.endpoint is required for type %q", a.Sensor.Type)
		}
	case "stdin":
	default:
		return fmt.Errorf("agent.sensor.type %q unknown: want prometheus|mqtt|stdin", a.Sensor.Type)
	}
	switch a.Sensor.Access {
	case AccessGranted, AccessDenied, AccessPrompt:
	default:
		return fmt.Errorf("agent.sensor.access %q unknown: want granted|denied|prompt", a.Sensor.Access)
	}
	if a.Sensor.Type == "prometheus" && a.Sensor.PollInterval <= 0 {
		return fmt.Errorf("agent.sensor.poll_interval must be positive")
	}
	if err := validateAuthMode("agent.sensor.auth", a.Sensor.Auth.Mode); err != nil {
		return err
	}

	if a.Forwarder.ThrottleWindow <= 0 {
		return fmt.Errorf("agent.forwarder.throttle_window must be positive")
	}
	if a.Forwarder.WriteTimeout <= 0 {
		return fmt.Errorf("agent.forwarder.write_timeout must be positive")
	}
	if _, err := a.Forwarder.TimeLocation(); err != nil {
		return fmt.Errorf("agent.forwarder.location: %w", err)
	}

	if a.Liveness.StaleThreshold <= 0 {
		return fmt.Errorf("agent.liveness.stale_threshold must be positive")
	}
	if a.Liveness.TickInterval <= 0 {
		return fmt.Errorf("agent.liveness.tick_interval must be positive")
	}

	switch a.Display.Output {
	case "stdout", "none":
	default:
		return fmt.Errorf("agent.display.output %q unknown: want stdout|none", a.Display.Output)
	}

	switch a.Sink.Type {
	case "grpc", "firebase", "redis":
	default:
		return fmt.Errorf("agent.sink.type %q unknown: want grpc|firebase|redis", a.Sink.Type)
	}
	if a.Sink.Endpoint == "" {
		return fmt.Errorf("agent.sink.endpoint is required")
	}
	if a.Sink.Path == "" {
		return fmt.Errorf("agent.sink.path must not be empty")
	}
	return validateAuthMode("agent.sink.auth", a.Sink.Auth.Mode)
}

func validateAuthMode(field, mode string) error {
	switch mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	default:
		return fmt.Errorf("%s.mode %q unknown: want mtls|apikey|bearer|basic|none", field, mode)
	}
}
