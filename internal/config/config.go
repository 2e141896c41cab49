package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Tracker TrackerConfig `yaml:"tracker"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the spot backend
type ServerConfig struct {
	Port        string `yaml:"port"`
	DBDriver    string `yaml:"db_driver"` // sqlite, postgres
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`
	JWTSecret   string `yaml:"jwt_secret"`
	TokenTTL    string `yaml:"token_ttl"`
	RateLimit   int    `yaml:"rate_limit"`        // write requests per window per IP
	RateWindow  string `yaml:"rate_limit_window"` // e.g. "1m"
}

// ClientConfig configures the device-side spot store
type ClientConfig struct {
	RemoteURL     string `yaml:"remote_url"`
	LocalDBPath   string `yaml:"local_db_path"`
	Locale        string `yaml:"locale"`
	RemoteTimeout string `yaml:"remote_timeout"`
	LocalTimeout  string `yaml:"local_timeout"`
}

// TrackerConfig selects and configures the position/heading provider
type TrackerConfig struct {
	Provider      string `yaml:"provider"` // nmea, mqtt, mock
	SerialPort    string `yaml:"serial_port"`
	BaudRate      int    `yaml:"baud_rate"`
	MQTTBroker    string `yaml:"mqtt_broker"`
	MQTTClientID  string `yaml:"mqtt_client_id"`
	TopicPosition string `yaml:"topic_position"`
	TopicHeading  string `yaml:"topic_heading"`
	LiveAddr      string `yaml:"live_addr"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       ":8080",
			DBDriver:   "sqlite",
			DBPath:     "./data/spots/spots.db",
			JWTSecret:  "your-secret-key-change-in-production",
			TokenTTL:   "720h",
			RateLimit:  30,
			RateWindow: "1m",
		},
		Client: ClientConfig{
			RemoteURL:     "http://localhost:8080",
			LocalDBPath:   "./data/device/local.db",
			Locale:        "en",
			RemoteTimeout: "10s",
			LocalTimeout:  "2s",
		},
		Tracker: TrackerConfig{
			Provider:      "mock",
			SerialPort:    "/dev/serial0",
			BaudRate:      9600,
			MQTTBroker:    "tcp://localhost:1883",
			MQTTClientID:  "spotmap-tracker",
			TopicPosition: "spotmap/position",
			TopicHeading:  "spotmap/heading",
			LiveAddr:      ":8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load 加载配置: defaults, then the YAML file if present, then environment overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Server.Port, "PORT")
	setString(&c.Server.DBDriver, "DB_DRIVER")
	setString(&c.Server.DBPath, "DB_PATH")
	setString(&c.Server.DatabaseURL, "DATABASE_URL")
	setString(&c.Server.JWTSecret, "JWT_SECRET")
	setString(&c.Client.RemoteURL, "SPOTMAP_REMOTE_URL")
	setString(&c.Client.LocalDBPath, "SPOTMAP_LOCAL_DB")
	setString(&c.Client.Locale, "SPOTMAP_LOCALE")
	setString(&c.Tracker.MQTTBroker, "MQTT_BROKER")
	setString(&c.Tracker.SerialPort, "GPS_SERIAL_PORT")
	setString(&c.Logging.Level, "LOG_LEVEL")
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Server.DBDriver {
	case "sqlite":
		if c.Server.DBPath == "" {
			return fmt.Errorf("server.db_path is required for sqlite")
		}
	case "postgres":
		if c.Server.DatabaseURL == "" {
			return fmt.Errorf("server.database_url is required for postgres")
		}
	default:
		return fmt.Errorf("unknown server.db_driver %q", c.Server.DBDriver)
	}

	switch c.Tracker.Provider {
	case "nmea", "mqtt", "mock":
	default:
		return fmt.Errorf("unknown tracker.provider %q", c.Tracker.Provider)
	}

	for name, v := range map[string]string{
		"server.token_ttl":         c.Server.TokenTTL,
		"server.rate_limit_window": c.Server.RateWindow,
		"client.remote_timeout":    c.Client.RemoteTimeout,
		"client.local_timeout":     c.Client.LocalTimeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be positive")
	}
	return nil
}

// TokenTTLDuration returns the parsed session lifetime
func (s ServerConfig) TokenTTLDuration() time.Duration {
	return mustDuration(s.TokenTTL)
}

// RateWindowDuration returns the parsed rate limit window
func (s ServerConfig) RateWindowDuration() time.Duration {
	return mustDuration(s.RateWindow)
}

// RemoteTimeoutDuration returns the parsed remote call timeout
func (c ClientConfig) RemoteTimeoutDuration() time.Duration {
	return mustDuration(c.RemoteTimeout)
}

// LocalTimeoutDuration returns the parsed local storage timeout
func (c ClientConfig) LocalTimeoutDuration() time.Duration {
	return mustDuration(c.LocalTimeout)
}

// mustDuration is only called on values that passed Validate
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
