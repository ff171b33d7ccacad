// Package config loads service settings from defaults, an optional file and
// RENTAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "RENTAL"

type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	Storage     StorageConfig `mapstructure:"storage"`
	Auth        AuthConfig    `mapstructure:"auth"`
	Log         LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	// Driver is one of postgres, sqlite or redis
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	LogSQL          bool          `mapstructure:"log_sql"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	Key      string        `mapstructure:"key"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// Roles allowed to list and modify inventory
	Roles []string `mapstructure:"roles"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "rental.db")
	v.SetDefault("storage.connect_attempts", 10)
	v.SetDefault("storage.retry_delay", 2*time.Second)
	v.SetDefault("storage.max_open_conns", 0)
	v.SetDefault("storage.log_sql", false)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("auth.key", "")
	v.SetDefault("auth.issuer", "rental-inventory")
	v.SetDefault("auth.audience", "rental-api")
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("auth.roles", []string{"Admin", "Manager"})

	v.SetDefault("log.level", "info")
}

// Load reads path when it is not empty, then applies environment overrides
// such as RENTAL_STORAGE_DRIVER or RENTAL_AUTH_KEY
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver))
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of postgres, sqlite, redis", c.Storage.Driver))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if len(c.Auth.Key) < 16 {
		errs = append(errs, errors.New("auth.key must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if len(c.Auth.Roles) == 0 {
		errs = append(errs, errors.New("auth.roles must not be empty"))
	}
	return errors.Join(errs...)
}
