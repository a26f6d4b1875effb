package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Backups  BackupConfig   `mapstructure:"backups"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress    string `mapstructure:"bind_address"`
	APIPort        int    `mapstructure:"api_port"`
	APIEnabled     bool   `mapstructure:"api_enabled"`
	MetricsPort    int    `mapstructure:"metrics_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Key    string       `mapstructure:"key"` // live aggregate key; backups derive from it
	Path   string       `mapstructure:"path"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Badger BadgerConfig `mapstructure:"badger"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// BadgerConfig defines BadgerDB settings
type BadgerConfig struct {
	InMemory   bool `mapstructure:"in_memory"`
	SyncWrites bool `mapstructure:"sync_writes"`
}

// TrackingConfig defines active-time tracking settings
type TrackingConfig struct {
	Domain        string `mapstructure:"domain"`
	IdleThreshold string `mapstructure:"idle_threshold"`
	TickInterval  string `mapstructure:"tick_interval"`
	Timezone      string `mapstructure:"timezone"`
	KeyCacheSize  int    `mapstructure:"key_cache_size"`
}

// BackupConfig defines backup retention and scheduling
type BackupConfig struct {
	Retention int    `mapstructure:"retention"`
	Auto      bool   `mapstructure:"auto"`
	DailyTime string `mapstructure:"daily_time"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Storage backend names.
const (
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageBadger = "badger"
	StorageMemory = "memory"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("SITETIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8787)
	v.SetDefault("server.api_enabled", true)
	v.SetDefault("server.metrics_port", 9787)
	v.SetDefault("server.metrics_enabled", true)

	// Storage defaults
	v.SetDefault("storage.type", StorageBolt)
	v.SetDefault("storage.key", "sitetime")
	v.SetDefault("storage.path", "/var/lib/sitetime/sitetime.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.badger.in_memory", false)
	v.SetDefault("storage.badger.sync_writes", true)

	// Tracking defaults
	v.SetDefault("tracking.domain", "")
	v.SetDefault("tracking.idle_threshold", "30s")
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.timezone", "Local")
	v.SetDefault("tracking.key_cache_size", 256)

	// Backup defaults
	v.SetDefault("backups.retention", 5)
	v.SetDefault("backups.auto", false)
	v.SetDefault("backups.daily_time", "03:00")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIEnabled && (cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535) {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsEnabled && (cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageBolt
	}
	if cfg.Storage.Key == "" {
		return fmt.Errorf("storage key is required")
	}

	switch cfg.Storage.Type {
	case StorageBolt, StorageSQLite:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s", cfg.Storage.Type)
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case StorageBadger:
		if !cfg.Storage.Badger.InMemory && cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for badger")
		}
	case StorageRedis:
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	for name, value := range map[string]string{
		"tracking.idle_threshold": cfg.Tracking.IdleThreshold,
		"tracking.tick_interval":  cfg.Tracking.TickInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if tick, _ := time.ParseDuration(cfg.Tracking.TickInterval); tick%time.Second != 0 {
		return fmt.Errorf("tracking.tick_interval must be a whole number of seconds")
	}

	if _, err := cfg.Location(); err != nil {
		return err
	}

	if cfg.Backups.Retention <= 0 {
		return fmt.Errorf("backups.retention must be positive")
	}
	if _, err := time.Parse("15:04", cfg.Backups.DailyTime); err != nil {
		return fmt.Errorf("invalid backups.daily_time (expected HH:MM): %w", err)
	}

	return nil
}

// Location resolves tracking.timezone. An empty value or "Local" is the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Tracking.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking.timezone: %w", err)
	}
	return loc, nil
}

// IdleThreshold returns tracking.idle_threshold as a duration.
func (c *Config) IdleThreshold() time.Duration {
	d, _ := time.ParseDuration(c.Tracking.IdleThreshold)
	return d
}

// TickInterval returns tracking.tick_interval as a duration.
func (c *Config) TickInterval() time.Duration {
	d, _ := time.ParseDuration(c.Tracking.TickInterval)
	return d
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys reads the file at configPath and returns keys that no
// setting consumes, sorted.
func UnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := viper.New()
	setDefaults(known)
	valid := make(map[string]bool)
	for _, key := range known.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}
