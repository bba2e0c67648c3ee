// Package config loads the pipeline configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// LogPath is the game log file to tail.
	LogPath string `yaml:"log_path"`

	// PollInterval is the tailer's poll period.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FromStart replays the log from the beginning instead of seeking
	// to the end on a cold start.
	FromStart bool `yaml:"from_start"`

	// DataDir holds the database, the tail position file, and the game
	// data tables.
	DataDir string `yaml:"data_dir"`

	// DBPath overrides the SQLite file location. Empty means
	// DataDir/oracle.db.
	DBPath string `yaml:"db_path"`

	// ListenAddr is the HTTP and WebSocket bind address.
	ListenAddr string `yaml:"listen_addr"`

	// PriceTableURL, when set, refreshes item prices from this URL on
	// startup, falling back to the local table.
	PriceTableURL string `yaml:"price_table_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		DataDir:      "data",
		ListenAddr:   "127.0.0.1:8391",
		LogLevel:     "info",
	}
}

// Load reads path, fills unset fields with defaults, applies ORACLE_*
// environment overrides, and validates. An empty path skips the file
// and uses defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ORACLE_LOG_PATH"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("ORACLE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("ORACLE_FROM_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FromStart = b
		}
	}
	if v := os.Getenv("ORACLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ORACLE_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ORACLE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("ORACLE_PRICE_TABLE_URL"); v != "" {
		c.PriceTableURL = v
	}
	if v := os.Getenv("ORACLE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// DatabasePath returns the SQLite file location.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "oracle.db")
}

// PositionPath returns the tail position file location.
func (c *Config) PositionPath() string {
	return filepath.Join(c.DataDir, "position.json")
}

// PriceTablePath returns the local item price table location.
func (c *Config) PriceTablePath() string {
	return filepath.Join(c.DataDir, "price_table.json")
}

// MapTablePath returns the map metadata table location.
func (c *Config) MapTablePath() string {
	return filepath.Join(c.DataDir, "map_table.json")
}
