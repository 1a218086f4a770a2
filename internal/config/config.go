package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"driftq/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Remote     RemoteConfig     `yaml:"remote"`
	Sync       SyncConfig       `yaml:"sync"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	Redis     RedisConfig     `yaml:"redis"`
	KeyPrefix string          `yaml:"key_prefix"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SyncConfig is the YAML shape of the engine tunables. Durations are
// plain strings ("5s", "1m") parsed with time.ParseDuration.
type SyncConfig struct {
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	MaxRetryDelay  string `yaml:"max_retry_delay"`
	BatchSize      int    `yaml:"batch_size"`
	SyncInterval   string `yaml:"sync_interval"`
	PeriodicSync   *bool  `yaml:"periodic_sync"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	ProbeInterval     string `yaml:"probe_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool            `yaml:"enabled"`
	HTTP      APIHTTPConfig   `yaml:"http"`
	Auth      APIAuthConfig   `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads the YAML config at configPath. A .env file in the working
// directory is loaded first and environment variables referenced in the
// YAML are expanded before parsing.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, err := c.Sync.Runtime(); err != nil {
		return err
	}
	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth enabled but no api_keys configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "driftq"
	}
	if c.API.Enabled && c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Monitoring.ProbeInterval == "" {
		c.Monitoring.ProbeInterval = "10s"
	}
	if c.Remote.KeyPrefix == "" {
		c.Remote.KeyPrefix = "driftq"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// Runtime converts the YAML sync section into the engine's runtime
// tunables, falling back to defaults for absent fields.
func (s SyncConfig) Runtime() (models.SyncConfig, error) {
	cfg := models.DefaultSyncConfig()

	if s.MaxRetries > 0 {
		cfg.MaxRetries = s.MaxRetries
	}
	if s.BatchSize > 0 {
		cfg.BatchSize = s.BatchSize
	}
	if s.PeriodicSync != nil {
		cfg.PeriodicSyncEnabled = *s.PeriodicSync
	}

	var err error
	if cfg.RetryBaseDelay, err = parseOptionalDuration(s.RetryBaseDelay, cfg.RetryBaseDelay); err != nil {
		return cfg, fmt.Errorf("sync.retry_base_delay: %w", err)
	}
	if cfg.MaxRetryDelay, err = parseOptionalDuration(s.MaxRetryDelay, cfg.MaxRetryDelay); err != nil {
		return cfg, fmt.Errorf("sync.max_retry_delay: %w", err)
	}
	if cfg.SyncInterval, err = parseOptionalDuration(s.SyncInterval, cfg.SyncInterval); err != nil {
		return cfg, fmt.Errorf("sync.sync_interval: %w", err)
	}

	return cfg, nil
}

// ProbeIntervalDuration returns the parsed connectivity probe interval.
func (m MonitoringConfig) ProbeIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(m.ProbeInterval); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

func parseOptionalDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, err
	}
	if d < 0 {
		return fallback, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
