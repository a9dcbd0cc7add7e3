// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docquery-service/internal/validator"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Search   SearchConfig   `mapstructure:"search"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port" validate:"min=1,max=65535"`
	Debug bool   `mapstructure:"debug"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=memory postgres"`
	SeedFile string `mapstructure:"seed_file"` // JSON {collection: [documents]}, loaded at startup
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// RedisConfig holds Redis connection settings for distributed locking.
// Without Redis the ingest lock is process-local.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`

	// CountCacheTTL enables caching of search totals. Zero disables it.
	CountCacheTTL time.Duration `mapstructure:"count_cache_ttl"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DescriptorsDir  string  `mapstructure:"descriptors_dir"` // extra or overriding *.yaml descriptors
	DefaultRadiusKm float64       `mapstructure:"default_radius_km" validate:"gte=0"`
	Timeout         time.Duration `mapstructure:"timeout"` // per request, zero for none
}

// IngestConfig holds background ingest settings.
type IngestConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	OnStartup bool          `mapstructure:"on_startup"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Feeds     []FeedConfig  `mapstructure:"feeds" validate:"dive"`
}

// FeedConfig holds a single feed's configuration.
type FeedConfig struct {
	Name          string        `mapstructure:"name" validate:"required"`
	Collection    string        `mapstructure:"collection" validate:"required"`
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	Path          string        `mapstructure:"path"`
	DocumentsPath string        `mapstructure:"documents_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retry         RetryConfig   `mapstructure:"retry"`
	CB            CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "docquery-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.seed_file", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "docquery")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "docquery")
	v.SetDefault("redis.count_cache_ttl", "1m")

	v.SetDefault("search.descriptors_dir", "")
	v.SetDefault("search.default_radius_km", 15.0)
	v.SetDefault("search.timeout", "10s")

	v.SetDefault("ingest.enabled", false)
	v.SetDefault("ingest.interval", "5m")
	v.SetDefault("ingest.on_startup", true)
	v.SetDefault("ingest.timeout", "30s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// FeedDefaults fills unset HTTP settings of a feed.
func FeedDefaults(f FeedConfig) FeedConfig {
	if f.Path == "" {
		f.Path = "/api/" + f.Collection
	}
	if f.Timeout == 0 {
		f.Timeout = 10 * time.Second
	}
	if f.Retry.MaxAttempts == 0 {
		f.Retry.MaxAttempts = 3
	}
	if f.Retry.WaitTime == 0 {
		f.Retry.WaitTime = time.Second
	}
	if f.Retry.MaxWaitTime == 0 {
		f.Retry.MaxWaitTime = 5 * time.Second
	}
	if f.CB.MaxRequests == 0 {
		f.CB.MaxRequests = 3
	}
	if f.CB.Interval == 0 {
		f.CB.Interval = time.Minute
	}
	if f.CB.Timeout == 0 {
		f.CB.Timeout = 30 * time.Second
	}
	if f.CB.FailureRatio == 0 {
		f.CB.FailureRatio = 0.5
	}
	return f
}
