package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform names accepted by display.platform.
const (
	PlatformNative    = "native"
	PlatformSimulated = "simulated"
)

// Config is the root configuration structure for displayd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Display     DisplayConfig     `yaml:"display"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DisplayConfig contains monitor discovery and control settings.
type DisplayConfig struct {
	// Platform selects the OS backend: "native" or "simulated".
	Platform string `yaml:"platform"`

	// SimulatedFile is the YAML monitor description used when Platform is
	// "simulated".
	SimulatedFile string `yaml:"simulated_file"`

	// EnableHDR binds HDR-active monitors to the SDR white level backend.
	EnableHDR bool `yaml:"enable_hdr"`

	// EnumerationTimeout bounds one scan, enumeration and DDC/CI detection together.
	// Default: 10s
	EnumerationTimeout time.Duration `yaml:"enumeration_timeout"`

	// ProbeInterval is how often the roster is checked for changes.
	// Default: 5s
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// RefreshInterval is how often brightness is re-read. 0 disables
	// periodic refresh.
	// Default: 60s
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Precluded identities are never enumerated.
	Precluded []string `yaml:"precluded"`

	// Precleared identities skip DDC capability detection.
	Precleared []string `yaml:"precleared"`

	Confidence ConfidenceConfig `yaml:"confidence"`
}

// ConfidenceConfig sets how many consecutive failures a monitor tolerates
// before it is reported as not controllable.
type ConfidenceConfig struct {
	Initial int `yaml:"initial"`
	Normal  int `yaml:"normal"`
}

// CalibrationConfig contains HDR calibration store settings.
type CalibrationConfig struct {
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`

	// FlushInterval is how often changed ranges are saved while running.
	// Zero saves only at shutdown. Default: 1m
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	WALMode        bool   `yaml:"wal_mode"`
	BusyTimeout    int    `yaml:"busy_timeout"`
	HistoryEnabled bool   `yaml:"history_enabled"`

	// HistoryRetention is how long history rows are kept; older rows are
	// pruned at startup. Zero keeps everything.
	// Default: 720h (30 days)
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DISPLAYD_SECTION_KEY
// For example: DISPLAYD_DATABASE_PATH, DISPLAYD_API_HOST
//
// An empty path skips the file and yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			Platform:           PlatformNative,
			EnableHDR:          true,
			EnumerationTimeout: 10 * time.Second,
			ProbeInterval:      5 * time.Second,
			RefreshInterval:    60 * time.Second,
			Confidence: ConfidenceConfig{
				Initial: 3,
				Normal:  5,
			},
		},
		Calibration: CalibrationConfig{
			Path:          "./data/calibration.json",
			Capacity:      16,
			FlushInterval: time.Minute,
		},
		Database: DatabaseConfig{
			Path:             "./data/displayd.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryEnabled:   true,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "displayd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "displayd",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8765,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DISPLAYD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Display
	if v := os.Getenv("DISPLAYD_PLATFORM"); v != "" {
		cfg.Display.Platform = v
	}

	// Persistence
	if v := os.Getenv("DISPLAYD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DISPLAYD_CALIBRATION_PATH"); v != "" {
		cfg.Calibration.Path = v
	}

	// MQTT
	if v := os.Getenv("DISPLAYD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DISPLAYD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DISPLAYD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DISPLAYD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DISPLAYD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Display validation
	switch c.Display.Platform {
	case PlatformNative:
	case PlatformSimulated:
		if c.Display.SimulatedFile == "" {
			errs = append(errs, "display.simulated_file is required for the simulated platform")
		}
	default:
		errs = append(errs, fmt.Sprintf("display.platform must be %q or %q", PlatformNative, PlatformSimulated))
	}
	if c.Display.EnumerationTimeout <= 0 {
		errs = append(errs, "display.enumeration_timeout must be positive")
	}
	if c.Display.ProbeInterval <= 0 {
		errs = append(errs, "display.probe_interval must be positive")
	}
	if c.Display.RefreshInterval < 0 {
		errs = append(errs, "display.refresh_interval must not be negative")
	}
	if c.Display.Confidence.Initial < 1 || c.Display.Confidence.Normal < 1 {
		errs = append(errs, "display.confidence allowances must be at least 1")
	}

	// Calibration validation
	if c.Calibration.Path == "" {
		errs = append(errs, "calibration.path is required")
	}
	if c.Calibration.Capacity < 1 {
		errs = append(errs, "calibration.capacity must be at least 1")
	}
	if c.Calibration.FlushInterval < 0 {
		errs = append(errs, "calibration.flush_interval must not be negative")
	}

	// Database validation
	if c.Database.HistoryEnabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when history is enabled")
	}
	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
