// SPDX-License-Identifier: Apache-2.0

// Package config loads host settings from HEMEBENCH_* environment variables
// and an optional config file.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "HEMEBENCH"

type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Catalog is a path to a catalog file. Empty selects the embedded catalog.
	Catalog       string `mapstructure:"CATALOG"`
	ServerName    string `mapstructure:"SERVER_NAME"`
	ServerVersion string `mapstructure:"SERVER_VERSION"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return load(newViper())
}

// LoadFile reads configuration from path, with environment variables taking
// precedence over file values.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("CATALOG", "")
	v.SetDefault("SERVER_NAME", "hemebench")
	v.SetDefault("SERVER_VERSION", "0.1.0")

	// Bind env vars explicitly so Unmarshal picks them up
	_ = v.BindEnv("LOG_LEVEL")
	_ = v.BindEnv("LOG_FORMAT")
	_ = v.BindEnv("CATALOG")
	_ = v.BindEnv("SERVER_NAME")
	_ = v.BindEnv("SERVER_VERSION")
	return v
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the log settings are usable.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: must be json or console", c.LogFormat)
	}
	if c.ServerName == "" {
		return fmt.Errorf("SERVER_NAME is required")
	}
	return nil
}

// Logger builds a zerolog logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
