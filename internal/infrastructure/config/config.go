package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/depthcore/internal/capture"
)

// Config is the root configuration structure for depthcore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Capture   CaptureConfig   `yaml:"capture"`
	Sensors   []SensorConfig  `yaml:"sensors"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// WebSocketConfig contains WebSocket hub settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	// SampleInterval is how often stream telemetry is sampled, in seconds.
	SampleInterval int `yaml:"sample_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer token settings. An empty secret disables
// authentication on the API.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// CaptureConfig selects and tunes the capture layer.
type CaptureConfig struct {
	// Driver names the capture layer implementation. Only "sim" ships
	// with this module.
	Driver string `yaml:"driver"`

	// DiscoveryTimeout bounds how long sensor discovery waits.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`

	// DispatchQueue is the capacity of the callback inbox.
	DispatchQueue int `yaml:"dispatch_queue"`

	// TickInterval is the update loop period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SingleSession routes only the first enumerated session.
	SingleSession bool `yaml:"single_session"`

	// SettingsFile is an optional exposure/gain file watched for changes.
	SettingsFile string `yaml:"settings_file"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig configures the simulated capture layer.
type SimConfig struct {
	Serials     []string      `yaml:"serials"`
	BootDelay   time.Duration `yaml:"boot_delay"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// SensorConfig describes one sensor the service owns at startup.
type SensorConfig struct {
	// Serial selects the sensor. Empty means the first available.
	Serial string `yaml:"serial"`
	Name   string `yaml:"name"`

	// AutoStart requests streaming once the device is configured.
	AutoStart bool `yaml:"auto_start"`

	// StartTimeout is passed to Device.Start. Zero defers the start until
	// the sensor is ready.
	StartTimeout time.Duration `yaml:"start_timeout"`

	// Settings are applied over capture.DefaultSettings.
	Settings capture.Settings `yaml:"settings"`
}

// UnmarshalYAML decodes a sensor entry over the capture defaults so a
// partial settings block only overrides what it names.
func (s *SensorConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain SensorConfig
	p := plain{Settings: capture.DefaultSettings()}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = SensorConfig(p)
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DEPTHCORE_SECTION_KEY
// For example: DEPTHCORE_DATABASE_PATH, DEPTHCORE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Path resolves the configuration file path: the flag value if set, then
// DEPTHCORE_CONFIG, then the default location.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("DEPTHCORE_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// DefaultPath is the configuration file used when no other is given.
const DefaultPath = "configs/config.yaml"

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "depthcore",
		},
		Database: DatabaseConfig{
			Path:        "./data/depthcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "depthcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "depthcore",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			SampleInterval: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Capture: CaptureConfig{
			Driver:           "sim",
			DiscoveryTimeout: 5 * time.Second,
			DispatchQueue:    256,
			TickInterval:     33 * time.Millisecond,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DEPTHCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEPTHCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("DEPTHCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DEPTHCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DEPTHCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("DEPTHCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DEPTHCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("DEPTHCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("DEPTHCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := os.Getenv("DEPTHCORE_CAPTURE_DRIVER"); v != "" {
		cfg.Capture.Driver = v
	}

	if v := os.Getenv("DEPTHCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && strings.Trim(c.MQTT.TopicPrefix, "/") == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// An empty secret disables API auth; a short one is rejected outright.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.SampleInterval < 1 {
			errs = append(errs, "influxdb.sample_interval must be at least 1 second")
		}
	}

	if c.Capture.Driver == "" {
		errs = append(errs, "capture.driver is required")
	}
	if c.Capture.DispatchQueue < 1 {
		errs = append(errs, "capture.dispatch_queue must be positive")
	}
	if c.Capture.TickInterval <= 0 {
		errs = append(errs, "capture.tick_interval must be positive")
	}
	if c.Capture.DiscoveryTimeout <= 0 {
		errs = append(errs, "capture.discovery_timeout must be positive")
	}

	seen := make(map[string]bool)
	for i, s := range c.Sensors {
		if s.Serial != "" {
			if seen[s.Serial] {
				errs = append(errs, fmt.Sprintf("sensors[%d]: duplicate serial %q", i, s.Serial))
			}
			seen[s.Serial] = true
		}
		if s.StartTimeout < 0 {
			errs = append(errs, fmt.Sprintf("sensors[%d].start_timeout must not be negative", i))
		}
		if err := s.Settings.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sensors[%d].settings: %v", i, err))
		}
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

// GetSampleInterval returns the telemetry sample interval as a Duration.
func (c *Config) GetSampleInterval() time.Duration {
	return time.Duration(c.InfluxDB.SampleInterval) * time.Second
}
