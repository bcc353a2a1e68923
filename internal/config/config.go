package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type SyncConfig struct {
	InitialDelay      string  `mapstructure:"initial_delay"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RetryInterval     string  `mapstructure:"retry_interval"`
}

func (s SyncConfig) GetInitialDelay() time.Duration {
	return parseDurationOr(s.InitialDelay, time.Second)
}

func (s SyncConfig) GetRetryInterval() time.Duration {
	return parseDurationOr(s.RetryInterval, 5*time.Minute)
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

type ConnectivityConfig struct {
	ProbeURL     string `mapstructure:"probe_url"`
	PollInterval string `mapstructure:"poll_interval"`
	Optimistic   bool   `mapstructure:"optimistic"`
}

func (c ConnectivityConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 10*time.Second)
}

type RemoteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AuthToken string `mapstructure:"auth_token"`
	Timeout   string `mapstructure:"timeout"`
}

func (r RemoteConfig) GetTimeout() time.Duration {
	return parseDurationOr(r.Timeout, 30*time.Second)
}

type CacheConfig struct {
	DefaultTTL string `mapstructure:"default_ttl"`
}

func (c CacheConfig) GetDefaultTTL() time.Duration {
	return parseDurationOr(c.DefaultTTL, 15*time.Minute)
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("storage.path", "sync.db")
	v.SetDefault("sync.initial_delay", "1s")
	v.SetDefault("sync.backoff_multiplier", 2.0)
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.retry_interval", "5m")
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "@every 15m")
	v.SetDefault("connectivity.poll_interval", "10s")
	v.SetDefault("connectivity.optimistic", true)
	v.SetDefault("cache.default_ttl", "15m")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
