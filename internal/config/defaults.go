package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Summary:     true,
		PingTimeout: 5 * time.Second,
		Port:        8080,
		DataDir:     ".payresolve",
		ThemeKey:    "theme",
		Log: LogConfig{
			Level: "info",
		},
		DevAPI: DevAPIConfig{
			Port:         8000,
			Model:        "gpt-4o-mini",
			RulesVersion: "builtin",
			SummaryRPM:   30,
		},
	}
}
