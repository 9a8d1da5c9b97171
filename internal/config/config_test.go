package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "stock-scanner/internal/errors"
)

func TestLoadWritesTemplateAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("first load should write config.toml: %v", err)
	}
	if cfg.Server.Addr != ":8888" {
		t.Errorf("Addr = %q, want :8888", cfg.Server.Addr)
	}
	if cfg.Server.RateLimitPerSec != 3 || cfg.Server.RateLimitBurst != 3 {
		t.Errorf("rate limit = %d/%d, want 3/3", cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	}
	if want := filepath.Join(dir, "scanner.db"); cfg.Database.Path != want {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, want)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	// Second load reads the written template, whose empty paths must
	// resolve to the config directory rather than fail validation.
	cfg2, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if cfg2.Database.Path != cfg.Database.Path {
		t.Errorf("second load Database.Path = %q, want %q", cfg2.Database.Path, cfg.Database.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("API_URL", "https://llm.example.com")
	t.Setenv("API_KEY", "env-key")
	t.Setenv("API_MODEL", "gpt-4o-mini")
	t.Setenv("API_TIMEOUT", "90")
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("DB_PATH", filepath.Join(dir, "override.db"))

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.URL != "https://llm.example.com" || cfg.API.Key != "env-key" {
		t.Errorf("API override = %+v", cfg.API)
	}
	if cfg.API.Model != "gpt-4o-mini" || cfg.API.Timeout != "90" {
		t.Errorf("API model/timeout override = %+v", cfg.API)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Server.Addr)
	}
	if want := filepath.Join(dir, "override.db"); cfg.Database.Path != want {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, want)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Addr: ":8888", RateLimitPerSec: 3, RateLimitBurst: 3},
		Database: DBConfig{Path: "scanner.db"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid config = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero rate limit", func(c *Config) { c.Server.RateLimitPerSec = 0 }},
		{"negative burst", func(c *Config) { c.Server.RateLimitBurst = -1 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("error %v should unwrap to ErrConfigInvalid", err)
			}
		})
	}
}
