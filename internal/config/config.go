// Package config provides configuration management for the stock scanner service.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "stock-scanner/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	API      APIConfig     `mapstructure:"api"`
	Database DBConfig      `mapstructure:"database"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	RateLimitPerSec int    `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int    `mapstructure:"rate_limit_burst"`
}

// APIConfig holds the server-level defaults for the model endpoint.
// Environment variables and per-request overrides take precedence at
// call time; these only seed the lowest tier.
type APIConfig struct {
	URL     string `mapstructure:"url"`
	Key     string `mapstructure:"key"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"` // seconds, kept as string so bad values degrade instead of failing
}

// DBConfig holds database configuration.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-scanner"
	}
	return filepath.Join(home, ".config", "stock-scanner")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A .env file in the working directory is loaded first so that
// environment overrides work the same locally and in deployment.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// Best effort: absence of a .env file is normal.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	// The template ships empty paths meaning "use the config directory".
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "scanner.db")
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(configDir, "logs", "scanner.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	// Set defaults
	v.SetDefault("server.addr", ":8888")
	v.SetDefault("server.rate_limit_per_sec", 3)
	v.SetDefault("server.rate_limit_burst", 3)
	v.SetDefault("api.url", "")
	v.SetDefault("api.key", "")
	v.SetDefault("api.model", "")
	v.SetDefault("api.timeout", "")
	v.SetDefault("database.path", filepath.Join(configDir, "scanner.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "scanner.log"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template and continue with defaults
			if werr := createTemplateConfig(configDir, name); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	// Model endpoint
	if v := os.Getenv("API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("API_MODEL"); v != "" {
		cfg.API.Model = v
	}
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		cfg.API.Timeout = v
	}

	// Server
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Database
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return apperrors.NewConfigError("server.addr", c.Server.Addr, "must not be empty")
	}
	if c.Server.RateLimitPerSec <= 0 {
		return apperrors.NewConfigError("server.rate_limit_per_sec", c.Server.RateLimitPerSec, "must be positive")
	}
	if c.Server.RateLimitBurst <= 0 {
		return apperrors.NewConfigError("server.rate_limit_burst", c.Server.RateLimitBurst, "must be positive")
	}
	if c.Database.Path == "" {
		return apperrors.NewConfigError("database.path", c.Database.Path, "must not be empty")
	}
	return nil
}
