package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the AV control core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Audio    AudioConfig    `yaml:"audio"`
	Matrix   MatrixConfig   `yaml:"matrix"`
	CEC      CECConfig      `yaml:"cec"`
	IR       IRConfig       `yaml:"ir"`
	Control  ControlConfig  `yaml:"control"`

	// DevicesFile is an optional YAML file of TVs seeded into the
	// device table on startup. Existing rows are left untouched.
	DevicesFile string `yaml:"devices_file"`
}

// SiteConfig contains venue-specific information.
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"` // json, text, auto
	Output string            `yaml:"output"` // stdout, stderr, file
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings, used when output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// DaemonConfig contains process-level settings for avcontrol.
type DaemonConfig struct {
	// LockFile guards against two daemons driving the same hardware.
	LockFile string `yaml:"lock_file"`
}

// AudioConfig contains settings for the audio processor connection.
type AudioConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	CommandTimeout       time.Duration `yaml:"command_timeout"`
	KeepAliveInterval    time.Duration `yaml:"keepalive_interval"`
	MaxMissedKeepAlives  int           `yaml:"max_missed_keepalives"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	// Meters are polled continuously while connected and published to
	// MQTT state topics and InfluxDB.
	Meters []MeterConfig `yaml:"meters"`
}

// MeterConfig describes one polled processor parameter.
type MeterConfig struct {
	Param    string        `yaml:"param"`
	Interval time.Duration `yaml:"interval"`
}

// MatrixConfig contains settings for the video/audio matrix switcher.
type MatrixConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Protocol string        `yaml:"protocol"` // tcp or udp
	Timeout  time.Duration `yaml:"timeout"`

	// CECInput is the matrix input the CEC adapter is wired to.
	CECInput int `yaml:"cec_input"`
}

// CECConfig contains settings for the USB CEC adapter.
type CECConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Binary         string        `yaml:"binary"`
	Device         string        `yaml:"device"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	ScanCacheTTL   time.Duration `yaml:"scan_cache_ttl"`

	// Hotplug re-initialises the adapter when its device node reappears.
	Hotplug bool `yaml:"hotplug"`
}

// IRConfig contains settings for the external IR transport endpoint.
type IRConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ControlConfig contains defaults for TV control batches.
type ControlConfig struct {
	Sequential   bool          `yaml:"sequential"`
	DelayBetween time.Duration `yaml:"delay_between"`
	Parallelism  int           `yaml:"parallelism"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SPORTSBAR_SECTION_KEY
// For example: SPORTSBAR_DATABASE_PATH, SPORTSBAR_AUDIO_HOST
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

// Default returns the built-in configuration without reading any file.
// avctl uses it when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "bar-001",
			Name: "Sports Bar",
		},
		Database: DatabaseConfig{
			Path:        "./data/sportsbar.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sportsbar-av",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/avcontrol.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Daemon: DaemonConfig{
			LockFile: "./data/avcontrol.lock",
		},
		Audio: AudioConfig{
			Port:                 5321,
			ConnectTimeout:       5 * time.Second,
			CommandTimeout:       5 * time.Second,
			KeepAliveInterval:    240 * time.Second,
			MaxMissedKeepAlives:  3,
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Matrix: MatrixConfig{
			Port:     4000,
			Protocol: "udp",
			Timeout:  5 * time.Second,
			CECInput: 1,
		},
		CEC: CECConfig{
			Binary:         "cec-client",
			Device:         "/dev/ttyACM0",
			CommandTimeout: 10 * time.Second,
			ScanCacheTTL:   30 * time.Second,
			Hotplug:        true,
		},
		IR: IRConfig{
			Timeout: 5 * time.Second,
		},
		Control: ControlConfig{
			Sequential:   true,
			DelayBetween: 500 * time.Millisecond,
			Parallelism:  4,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPORTSBAR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SPORTSBAR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SPORTSBAR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SPORTSBAR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SPORTSBAR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SPORTSBAR_AUDIO_HOST"); v != "" {
		cfg.Audio.Host = v
	}
	if v := os.Getenv("SPORTSBAR_MATRIX_HOST"); v != "" {
		cfg.Matrix.Host = v
	}
	if v := os.Getenv("SPORTSBAR_MATRIX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Matrix.Port = port
		}
	}
	if v := os.Getenv("SPORTSBAR_CEC_DEVICE"); v != "" {
		cfg.CEC.Device = v
	}
	if v := os.Getenv("SPORTSBAR_IR_BASE_URL"); v != "" {
		cfg.IR.BaseURL = v
	}

	if v := os.Getenv("SPORTSBAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together rather than stopping at the first.
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

	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if c.Audio.Enabled {
		if c.Audio.Host == "" {
			errs = append(errs, "audio.host is required when audio is enabled")
		}
		if !validPort(c.Audio.Port) {
			errs = append(errs, "audio.port must be between 1 and 65535")
		}
		for i, m := range c.Audio.Meters {
			if m.Param == "" {
				errs = append(errs, fmt.Sprintf("audio.meters[%d].param is required", i))
			}
			if m.Interval < 0 {
				errs = append(errs, fmt.Sprintf("audio.meters[%d].interval must not be negative", i))
			}
		}
	}

	if c.Matrix.Enabled {
		if c.Matrix.Host == "" {
			errs = append(errs, "matrix.host is required when matrix is enabled")
		}
		if !validPort(c.Matrix.Port) {
			errs = append(errs, "matrix.port must be between 1 and 65535")
		}
		switch strings.ToLower(c.Matrix.Protocol) {
		case "tcp", "udp":
		default:
			errs = append(errs, "matrix.protocol must be tcp or udp")
		}
		if c.Matrix.CECInput < 1 {
			errs = append(errs, "matrix.cec_input must be at least 1")
		}
	}

	if c.CEC.Enabled && c.CEC.Binary == "" {
		errs = append(errs, "cec.binary is required when cec is enabled")
	}

	if c.IR.Enabled && c.IR.BaseURL == "" {
		errs = append(errs, "ir.base_url is required when ir is enabled")
	}

	if c.Control.DelayBetween < 0 {
		errs = append(errs, "control.delay_between must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
