// Package config loads runtime settings from an optional YAML file, the
// environment and CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. PAYROLLAUDIT_LOG_LEVEL.
const EnvPrefix = "PAYROLLAUDIT"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type IngestConfig struct {
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`
	// MaxRowFailures bounds the per-row upsert failures tolerated in one upload
	// before the whole upload is rolled back. Negative means unlimited.
	MaxRowFailures int `mapstructure:"max_row_failures"`
	Workers        int `mapstructure:"workers"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuthConfig signs the reviewer tokens issued by "user login".
type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATABASE_URL is honoured without the prefix.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.max_file_bytes", 50*1024*1024)
	v.SetDefault("ingest.max_row_failures", 100)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("catalog.cache_ttl", 10*time.Minute)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
}

// Load reads path (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.Ingest.MaxFileBytes <= 0 {
		return fmt.Errorf("config: ingest.max_file_bytes must be positive")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("config: ingest.workers must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: auth.token_ttl must be positive")
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("config: catalog.cache_ttl must not be negative")
	}
	return nil
}
