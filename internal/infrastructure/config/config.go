package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sequence tester.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Tester    TesterConfig    `yaml:"tester"`
	Camera    CameraConfig    `yaml:"camera"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TesterConfig identifies this tester instance.
// The ID scopes MQTT topics so several testers can share a broker.
type TesterConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CameraConfig contains settings for the simulated camera that packs
// setting snapshots into frames.
type CameraConfig struct {
	// Name is the device name the camera reports in every frame.
	Name string `yaml:"name"`

	// BufferSize is the initial pack buffer size in bytes.
	BufferSize int `yaml:"buffer_size"`

	// MaxBufferSize caps buffer growth when a snapshot does not fit.
	MaxBufferSize int `yaml:"max_buffer_size"`

	// FrameInterval is the delay between sequence frames in milliseconds.
	FrameInterval int `yaml:"frame_interval"`

	// ExposureMs is the default exposure reported before anything sets one.
	ExposureMs float64 `yaml:"exposure_ms"`
}

// DatabaseConfig contains SQLite settings for the frame archive.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionHours prunes archived frames older than this. 0 keeps everything.
	RetentionHours int `yaml:"retention_hours"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	// MaxDelay caps the reconnect backoff, in seconds.
	MaxDelay int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the live frame stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// InfluxDBConfig contains InfluxDB connection settings for frame metrics.
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

// envPrefix is prepended to every environment override.
const envPrefix = "SEQTESTER_"

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SEQTESTER_SECTION_KEY
// For example: SEQTESTER_DATABASE_PATH, SEQTESTER_CAMERA_NAME
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

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Tester: TesterConfig{
			ID:   "tester-001",
			Name: "Sequence Tester",
		},
		Camera: CameraConfig{
			Name:          "TCamera",
			BufferSize:    4096,
			MaxBufferSize: 16 << 20,
			FrameInterval: 100,
			ExposureMs:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/seqtester.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "seqtester",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				MaxDelay: 60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
			Bucket:        "seqtester",
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
func applyEnvOverrides(cfg *Config) {
	if v := getenv("TESTER_ID"); v != "" {
		cfg.Tester.ID = v
	}

	// Camera
	if v := getenv("CAMERA_NAME"); v != "" {
		cfg.Camera.Name = v
	}
	if v := getenv("CAMERA_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.BufferSize = n
		}
	}

	// Database
	if v := getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := getenv("API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

func getenv(key string) string {
	return os.Getenv(envPrefix + key)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Tester.ID == "" {
		errs = append(errs, "tester.id is required")
	} else if strings.ContainsAny(c.Tester.ID, "/+#") {
		errs = append(errs, "tester.id must not contain MQTT wildcards or '/'")
	}

	if c.Camera.Name == "" {
		errs = append(errs, "camera.name is required")
	}
	if c.Camera.BufferSize < 1 {
		errs = append(errs, "camera.buffer_size must be positive")
	}
	if c.Camera.MaxBufferSize < c.Camera.BufferSize {
		errs = append(errs, "camera.max_buffer_size must be at least camera.buffer_size")
	}
	if c.Camera.FrameInterval < 0 {
		errs = append(errs, "camera.frame_interval must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
		errs = append(errs, "websocket.ping_interval and websocket.pong_timeout must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
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

// GetFrameInterval returns the sequence frame interval as a Duration.
func (c *Config) GetFrameInterval() time.Duration {
	return time.Duration(c.Camera.FrameInterval) * time.Millisecond
}
