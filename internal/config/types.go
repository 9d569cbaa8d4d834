package config

import "time"

// Config is the top-level payresolve configuration, corresponding to
// .payresolve.yml.
type Config struct {
	// APIBase is the diagnostic API base URL. Empty selects the dev or
	// production default, see ResolvedAPIBase.
	APIBase string `yaml:"api_base" koanf:"api_base"`
	Dev     bool   `yaml:"dev" koanf:"dev"`
	// Origin resolves a relative APIBase for server-side calls. Empty means
	// the console's own listen address.
	Origin string `yaml:"origin" koanf:"origin"`
	// Upstream, when set, is reverse-proxied under /api by the console server.
	Upstream        string        `yaml:"upstream" koanf:"upstream"`
	Summary         bool          `yaml:"summary" koanf:"summary"`
	DiagnoseTimeout time.Duration `yaml:"diagnose_timeout" koanf:"diagnose_timeout"`
	PingTimeout     time.Duration `yaml:"ping_timeout" koanf:"ping_timeout"`
	Port            int           `yaml:"port" koanf:"port"`
	DataDir         string        `yaml:"data_dir" koanf:"data_dir"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	ThemeKey        string        `yaml:"theme_key" koanf:"theme_key"`
	// HistoryRetention prunes recorded runs older than this at startup.
	// Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention" koanf:"history_retention"`
	Log              LogConfig     `yaml:"log" koanf:"log"`
	DevAPI           DevAPIConfig  `yaml:"devapi" koanf:"devapi"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	JSON  bool   `yaml:"json" koanf:"json"`
}

// DevAPIConfig configures the local stub of the diagnostic API.
type DevAPIConfig struct {
	Port         int    `yaml:"port" koanf:"port"`
	Model        string `yaml:"model" koanf:"model"`
	RulesVersion string `yaml:"rules_version" koanf:"rules_version"`
	// OpenAIKey enables LLM summaries; without it a deterministic summary
	// is produced.
	OpenAIKey     string `yaml:"openai_key" koanf:"openai_key"`
	OpenAIBaseURL string `yaml:"openai_base_url" koanf:"openai_base_url"`
	// SummaryRPM caps LLM summary requests per minute. Zero is unlimited.
	SummaryRPM int `yaml:"summary_rpm" koanf:"summary_rpm"`
	// RulesFile overrides the built-in classifier rules (YAML or JSON).
	RulesFile string `yaml:"rules_file" koanf:"rules_file"`
	// KnowledgeDir holds optional <category>_refs.txt and
	// <category>_steps.txt playbook overrides.
	KnowledgeDir string `yaml:"knowledge_dir" koanf:"knowledge_dir"`
}
