// Package config loads daemon configuration from a YAML file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DataSourceName is the SQLite file path or PostgreSQL connection string.
	DataSourceName string `yaml:"data_source_name"`
}

// CacheConfig configures the local document cache.
type CacheConfig struct {
	// Medium is "memory" or "badger".
	Medium string `yaml:"medium"`

	// Path is the on-disk directory for the badger medium.
	Path string `yaml:"path"`

	// QuotaBytes bounds the cache size; zero means unbounded.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// MaxAge bounds how old a cached entry may be and still be served;
	// zero disables the bound.
	MaxAge time.Duration `yaml:"max_age"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DataSourceName == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DataSourceName = "quotes.db"
	}
	if c.Cache.Medium == "" {
		c.Cache.Medium = "memory"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// Default returns a Config with production-ready defaults.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads a YAML config file, applies environment overrides and defaults,
// and validates the result. An empty path yields the default configuration
// with environment overrides applied.
func Load(path string) (*Config, error) {
	c := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	c.applyEnv()
	c.setDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides file values with QUOTESYNC_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("QUOTESYNC_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("QUOTESYNC_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("QUOTESYNC_STORAGE_DSN"); v != "" {
		c.Storage.DataSourceName = v
	}
	if v := os.Getenv("QUOTESYNC_CACHE_MEDIUM"); v != "" {
		c.Cache.Medium = v
	}
	if v := os.Getenv("QUOTESYNC_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("QUOTESYNC_CACHE_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Cache.QuotaBytes = n
		}
	}
	if v := os.Getenv("QUOTESYNC_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("QUOTESYNC_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DataSourceName == "" {
		return fmt.Errorf("storage data_source_name is required for driver %q", c.Storage.Driver)
	}
	switch c.Cache.Medium {
	case "memory":
	case "badger":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache path is required for the badger medium")
		}
	default:
		return fmt.Errorf("unknown cache medium %q", c.Cache.Medium)
	}
	return nil
}
