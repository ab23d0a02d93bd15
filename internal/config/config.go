// Package config loads service configuration from .env files, environment
// variables, and defaults.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the trading engine.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Hub       HubConfig       `mapstructure:"hub"`
	Trading   TradingConfig   `mapstructure:"trading"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"` // empty → in-memory store
}

type RedisConfig struct {
	URL string `mapstructure:"url"` // empty → no cache layer
}

type SimulatorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	MaxChangePct float64       `mapstructure:"max_change_pct"`
}

type HubConfig struct {
	ClientBuffer int `mapstructure:"client_buffer"`
}

type TradingConfig struct {
	StartingCash string `mapstructure:"starting_cash"`
}

// Load reads configuration from .env file, environment variables, and
// defaults, in that order of precedence.
func Load() (*Config, error) {
	v := viper.New()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")

	v.SetDefault("simulator.tick_interval", 5*time.Second)
	v.SetDefault("simulator.max_change_pct", 0.02)

	v.SetDefault("hub.client_buffer", 64)

	v.SetDefault("trading.starting_cash", "100000")

	// Map dot-notation keys to underscore env vars (app.port → APP_PORT).
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "database.url", "redis.url")
	bindEnv(v, "simulator.tick_interval", "simulator.max_change_pct")
	bindEnv(v, "hub.client_buffer")
	bindEnv(v, "trading.starting_cash")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Simulator.TickInterval <= 0 {
		return nil, fmt.Errorf("simulator tick_interval must be positive")
	}
	if cfg.Simulator.MaxChangePct <= 0 || cfg.Simulator.MaxChangePct >= 1 {
		return nil, fmt.Errorf("simulator max_change_pct must be in (0, 1)")
	}

	return &cfg, nil
}

// bindEnv binds multiple keys at once.
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			slog.Warn("could not bind env var", "key", key, "err", err)
		}
	}
}
