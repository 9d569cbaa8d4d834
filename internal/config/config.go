package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/sourpat/payresolve/internal/apiclient"
)

// EnvPrefix prefixes environment overrides, e.g. PAYRESOLVE_API_BASE.
const EnvPrefix = "PAYRESOLVE_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PAYRESOLVE_*). Nested keys use a double
// underscore: PAYRESOLVE_LOG__LEVEL -> log.level.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validLogLevels is the set of recognized log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DevAPI.Port < 0 || c.DevAPI.Port > 65535 {
		return fmt.Errorf("devapi.port %d out of range", c.DevAPI.Port)
	}
	if c.DiagnoseTimeout < 0 {
		return fmt.Errorf("diagnose_timeout must be non-negative")
	}
	if c.PingTimeout < 0 {
		return fmt.Errorf("ping_timeout must be non-negative")
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("history_retention must be non-negative")
	}
	if c.DevAPI.SummaryRPM < 0 {
		return fmt.Errorf("devapi.summary_rpm must be non-negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ThemeKey == "" {
		return fmt.Errorf("theme_key is required")
	}
	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// ResolvedAPIBase resolves the diagnostic API base URL. It is computed once
// at startup and passed to every component that needs it.
func (c *Config) ResolvedAPIBase() string {
	return apiclient.ResolveBase(c.APIBase, c.Dev)
}

// ResolvedOrigin returns Origin, defaulting to the console's loopback
// address on the configured port.
func (c *Config) ResolvedOrigin() string {
	if c.Origin != "" {
		return strings.TrimRight(c.Origin, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Port)
}

// DBPath is the SQLite database location under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "payresolve.db")
}
