package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName               string        `mapstructure:"app_name"`
	Env                   string        `mapstructure:"app_env"`
	LogLevel              string        `mapstructure:"log_level"`
	PostcodesHost         string        `mapstructure:"postcodes_host"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	MaxRedirects          int           `mapstructure:"max_redirects"`

	JobsFile             string        `mapstructure:"jobs_file"`
	PublishersFile       string        `mapstructure:"publishers_file"`
	BatchIntervalSeconds int64         `mapstructure:"batch_interval"`
	BatchInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	SQLitePath             string        `mapstructure:"sqlite_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// StoragePath returns the file path for the configured storage backend.
func (c *Config) StoragePath() string {
	if c.StorageType == "sqlite" {
		return c.SQLitePath
	}
	return c.BBoltPath
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "postcodes-geocoder")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("postcodes_host", "https://api.postcodes.io")
	v.SetDefault("request_timeout_seconds", 10)
	v.SetDefault("max_redirects", 5)
	v.SetDefault("jobs_file", "./configs/jobs.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("batch_interval", 0) // seconds; 0 runs a single pass
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/published.db")
	v.SetDefault("sqlite_path", "./data/published.sqlite")
	v.SetDefault("storage_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.MaxRedirects < 0 {
		return nil, fmt.Errorf("invalid max_redirects (must not be negative)")
	}

	if cfg.BatchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid batch_interval (must not be negative)")
	}
	cfg.BatchInterval = time.Duration(cfg.BatchIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
