package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Expected 1h cache TTL, got %s", cfg.Cache.TTL)
	}
	if cfg.Exchanges["NSE"] != ".NS" {
		t.Errorf("Expected NSE suffix .NS, got %q", cfg.Exchanges["NSE"])
	}
	start, err := cfg.DefaultStartDate()
	if err != nil || start.Year() != 2023 {
		t.Errorf("Unexpected default start %v (%v)", start, err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Fetch.Workers != DefaultConfig().Fetch.Workers {
		t.Errorf("Expected default workers, got %d", cfg.Fetch.Workers)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fetch:
  workers: 3
  timeout: 5s
exchanges:
  US: ""
  NSE: ".NS"
analysis:
  default_start: "2022-06-01"
  horizon: 30
  strategy: additive
  interval_width: 0.9
cache:
  ttl: 15m
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Fetch.Workers != 3 || cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("Unexpected fetch config: %+v", cfg.Fetch)
	}
	if cfg.Analysis.Strategy != "additive" || cfg.Analysis.Horizon != 30 {
		t.Errorf("Unexpected analysis config: %+v", cfg.Analysis)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("Expected 15m TTL, got %s", cfg.Cache.TTL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should be valid: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("fetch: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("STOCKANALYZER_DB", "/tmp/runs.db")
	t.Setenv("STOCKANALYZER_PORT", "9100")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.API.Finnhub.Key != "fh-key" {
		t.Errorf("Expected env API key, got %q", cfg.API.Finnhub.Key)
	}
	if cfg.Store.Path != "/tmp/runs.db" {
		t.Errorf("Expected env DB path, got %q", cfg.Store.Path)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Expected env port, got %d", cfg.Server.Port)
	}

	t.Setenv("STOCKANALYZER_PORT", "http")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Expected error for non-numeric port")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("ALPHAVANTAGE_API_KEY=av-from-file\n"), 0644)
	t.Setenv("ALPHAVANTAGE_API_KEY", "")
	os.Unsetenv("ALPHAVANTAGE_API_KEY")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if os.Getenv("ALPHAVANTAGE_API_KEY") != "av-from-file" {
		t.Errorf("Expected key from .env, got %q", os.Getenv("ALPHAVANTAGE_API_KEY"))
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Missing .env should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"workers", func(c *Config) { c.Fetch.Workers = 0 }, "workers"},
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "timeout"},
		{"horizon", func(c *Config) { c.Analysis.Horizon = 120 }, "horizon"},
		{"strategy", func(c *Config) { c.Analysis.Strategy = "prophet" }, "strategy"},
		{"interval", func(c *Config) { c.Analysis.IntervalWidth = 1.5 }, "interval_width"},
		{"start", func(c *Config) { c.Analysis.DefaultStart = "01/01/2023" }, "default_start"},
		{"order", func(c *Config) { c.API.Order = []string{"bloomberg"} }, "bloomberg"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"us", func(c *Config) { delete(c.Exchanges, "US") }, "US"},
		{"providers", func(c *Config) {
			c.API.Yahoo.Disabled = true
			c.API.Finnhub.Key = ""
			c.API.AlphaVantage.Key = ""
		}, "provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
