package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ProvidersConfig holds the external service integrations. The media
// server and playback stats service are mandatory; the rest are optional
// and disabled by default.
type ProvidersConfig struct {
	Plex      PlexConfig    `mapstructure:"plex"`
	Tautulli  ServiceConfig `mapstructure:"tautulli"`
	Radarr    ServiceConfig `mapstructure:"radarr"`
	Sonarr    ServiceConfig `mapstructure:"sonarr"`
	Overseerr ServiceConfig `mapstructure:"overseerr"`
}

// PlexConfig holds the media server connection settings. Plex
// authenticates with a token rather than an API key.
type PlexConfig struct {
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"`
}

// ServiceConfig holds connection settings for an API-key service.
type ServiceConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Enabled bool   `mapstructure:"enabled"`
	Timeout int    `mapstructure:"timeout"`
}

// MaintenanceConfig tunes the scan and deletion machinery.
type MaintenanceConfig struct {
	ScanWorkers          int `mapstructure:"scan_workers"`
	DeletionWorkers      int `mapstructure:"deletion_workers"`
	QueueSize            int `mapstructure:"queue_size"`
	ScanStartsPerMinute  int `mapstructure:"scan_starts_per_minute"`
	YearTolerance        int `mapstructure:"year_tolerance"`
	HistoryRetentionDays int `mapstructure:"history_retention_days"`
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not unmarshal: %v", err))
	}
	return cfg
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.plexwrapped")
	}

	// Environment variable settings
	v.SetEnvPrefix("PLEXWRAPPED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.path", "./data/plexwrapped.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	// Provider defaults
	v.SetDefault("providers.plex.url", "")
	v.SetDefault("providers.plex.token", "")
	v.SetDefault("providers.plex.timeout", 30)
	for _, svc := range []string{"tautulli", "radarr", "sonarr", "overseerr"} {
		v.SetDefault("providers."+svc+".url", "")
		v.SetDefault("providers."+svc+".api_key", "")
		v.SetDefault("providers."+svc+".enabled", false)
		v.SetDefault("providers."+svc+".timeout", 30)
	}
	// Playback stats are mandatory for scans, so tautulli defaults on.
	v.SetDefault("providers.tautulli.enabled", true)

	// Maintenance defaults
	v.SetDefault("maintenance.scan_workers", 2)
	v.SetDefault("maintenance.deletion_workers", 1)
	v.SetDefault("maintenance.queue_size", 64)
	v.SetDefault("maintenance.scan_starts_per_minute", 10)
	v.SetDefault("maintenance.year_tolerance", 1)
	v.SetDefault("maintenance.history_retention_days", 365)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
