package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if !cfg.Summary {
		t.Error("expected summary endpoint enabled by default")
	}
	if cfg.DiagnoseTimeout != 0 {
		t.Errorf("expected no default diagnose timeout, got %s", cfg.DiagnoseTimeout)
	}
	if cfg.PingTimeout != 5*time.Second {
		t.Errorf("expected 5s ping timeout, got %s", cfg.PingTimeout)
	}
	if cfg.ThemeKey != "theme" {
		t.Errorf("expected theme key %q, got %q", "theme", cfg.ThemeKey)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.payresolve.yml")

	original := DefaultConfig()
	original.APIBase = "https://triage.example.com"
	original.Dev = true
	original.DiagnoseTimeout = 30 * time.Second
	original.Port = 9090
	original.Log.Level = "debug"
	original.DevAPI.RulesVersion = "2025.06"

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify round-trip.
	if loaded.APIBase != original.APIBase {
		t.Errorf("api_base: got %q, want %q", loaded.APIBase, original.APIBase)
	}
	if !loaded.Dev {
		t.Error("dev: expected true")
	}
	if loaded.DiagnoseTimeout != original.DiagnoseTimeout {
		t.Errorf("diagnose_timeout: got %s, want %s", loaded.DiagnoseTimeout, original.DiagnoseTimeout)
	}
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("log.level: got %q", loaded.Log.Level)
	}
	if loaded.DevAPI.RulesVersion != "2025.06" {
		t.Errorf("devapi.rules_version: got %q", loaded.DevAPI.RulesVersion)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("PAYRESOLVE_API_BASE", "https://override.example.com")
	t.Setenv("PAYRESOLVE_DIAGNOSE_TIMEOUT", "45s")
	t.Setenv("PAYRESOLVE_LOG__LEVEL", "warn")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.APIBase != "https://override.example.com" {
		t.Errorf("env override failed: got %q", loaded.APIBase)
	}
	if loaded.DiagnoseTimeout != 45*time.Second {
		t.Errorf("duration override failed: got %s", loaded.DiagnoseTimeout)
	}
	if loaded.Log.Level != "warn" {
		t.Errorf("nested override failed: got %q", loaded.Log.Level)
	}
}

func TestResolvedAPIBase(t *testing.T) {
	tests := []struct {
		base string
		dev  bool
		want string
	}{
		{"https://api.example.com", false, "https://api.example.com"},
		{" https://api.example.com ", true, "https://api.example.com"},
		{"", true, "http://127.0.0.1:8000"},
		{"", false, "/api"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.APIBase = tt.base
		cfg.Dev = tt.dev
		if got := cfg.ResolvedAPIBase(); got != tt.want {
			t.Errorf("ResolvedAPIBase(%q, dev=%v) = %q, want %q", tt.base, tt.dev, got, tt.want)
		}
	}
}

func TestResolvedOrigin(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ResolvedOrigin(); got != "http://127.0.0.1:8080" {
		t.Errorf("default origin: got %q", got)
	}
	cfg.Origin = "https://console.example.com/"
	if got := cfg.ResolvedOrigin(); got != "https://console.example.com" {
		t.Errorf("explicit origin: got %q", got)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Port = -1 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"negative diagnose timeout", func(c *Config) { c.DiagnoseTimeout = -time.Second }},
		{"negative ping timeout", func(c *Config) { c.PingTimeout = -time.Second }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty theme key", func(c *Config) { c.ThemeKey = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad devapi port", func(c *Config) { c.DevAPI.Port = 100000 }},
		{"negative history retention", func(c *Config) { c.HistoryRetention = -time.Hour }},
		{"negative summary rpm", func(c *Config) { c.DevAPI.SummaryRPM = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yml")
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
