// Package config loads and validates monitor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Summarizer providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Taxonomy   TaxonomyConfig   `mapstructure:"taxonomy"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	DB         DBConfig         `mapstructure:"db"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// ConfigFile is the file actually read; empty when running on defaults
	// and environment only.
	ConfigFile string `mapstructure:"-"`
}

// PipelineConfig sets record defaults and the shard location.
type PipelineConfig struct {
	SourceID      string `mapstructure:"source_id"`
	Language      string `mapstructure:"language"`
	OutputDir     string `mapstructure:"output_dir"`
	DiscoveryPath string `mapstructure:"discovery_path"`
	Limit         int    `mapstructure:"limit"`
}

// FetchConfig configures the plain HTTP fetcher.
type FetchConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	AcceptLanguage string  `mapstructure:"accept_language"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// HeadlessConfig configures JS rendering for protected domains.
type HeadlessConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	JSDomains       []string `mapstructure:"js_domains"`
	Promote         bool     `mapstructure:"promote"`
	PromotionThresh int      `mapstructure:"promotion_threshold"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	SettleMillis    int      `mapstructure:"settle_millis"`
	ExecPath        string   `mapstructure:"exec_path"`
	NoSandbox       bool     `mapstructure:"no_sandbox"`
}

// SummarizerConfig selects the text-generation collaborator.
type SummarizerConfig struct {
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	BaseURL        string  `mapstructure:"base_url"`
	OpenAIAPIKey   string  `mapstructure:"openai_api_key"`
	GeminiAPIKey   string  `mapstructure:"gemini_api_key"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// TaxonomyConfig points at optional YAML rule tables.
type TaxonomyConfig struct {
	RulesPath string `mapstructure:"rules_path"`
}

// ArchiveConfig sets where raw HTML snapshots go.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for record notifications.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls access to the document index.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	ConnLifetime int    `mapstructure:"conn_lifetime_minutes"`
}

// MetricsConfig controls the Pushgateway used by batch runs.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. A config file that does not
// exist is skipped so callers fall back to defaults and environment; check
// Config.ConfigFile to tell the cases apart.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindProviderEnv(v); err != nil {
		return Config{}, err
	}

	var used string
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
			used = v.ConfigFileUsed()
		case errors.Is(err, fs.ErrNotExist), errors.As(err, &notFound):
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = used
	cfg.Summarizer.Provider = inferProvider(cfg.Summarizer)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// inferProvider normalizes the provider name. When none is named, a present
// API key selects its provider, OpenAI first.
func inferProvider(s SummarizerConfig) string {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider != "" {
		return provider
	}
	switch {
	case s.OpenAIAPIKey != "":
		return ProviderOpenAI
	case s.GeminiAPIKey != "":
		return ProviderGemini
	default:
		return ""
	}
}

// bindProviderEnv accepts the vendor-standard variable names next to the
// prefixed ones.
func bindProviderEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"summarizer.openai_api_key": {"MONITOR_SUMMARIZER_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"summarizer.gemini_api_key": {"MONITOR_SUMMARIZER_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"summarizer.model":          {"MONITOR_SUMMARIZER_MODEL", "OPENAI_MODEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.source_id", "investeu_news")
	v.SetDefault("pipeline.language", "en")
	v.SetDefault("pipeline.output_dir", "outputs/docs")
	v.SetDefault("pipeline.discovery_path", "state/latest_discovery.json")
	v.SetDefault("pipeline.limit", 5)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; EU-Innovation-Monitor/1.0)")
	v.SetDefault("fetch.accept_language", "en-GB,en;q=0.8")
	v.SetDefault("fetch.timeout_seconds", 25)
	v.SetDefault("fetch.max_body_bytes", 10<<20)
	v.SetDefault("fetch.per_host_rps", 1.0)
	v.SetDefault("fetch.per_host_burst", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.js_domains", []string{"eur-lex.europa.eu"})
	v.SetDefault("headless.promote", false)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_millis", 1500)
	v.SetDefault("summarizer.provider", "")
	v.SetDefault("summarizer.temperature", 0.3)
	v.SetDefault("summarizer.max_tokens", 1100)
	v.SetDefault("summarizer.timeout_seconds", 60)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.local_dir", "outputs/raw")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("pubsub.backend", "none")
	v.SetDefault("pubsub.topic_name", "documents")
	v.SetDefault("db.table", "documents")
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("metrics.job", "eu_monitor_process")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		return fmt.Errorf("pipeline.output_dir is required")
	}
	if c.Pipeline.Limit < 0 {
		return fmt.Errorf("pipeline.limit must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	switch c.Summarizer.Provider {
	case "", ProviderNone:
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("summarizer.provider %q is not supported", c.Summarizer.Provider)
	}
	switch c.Archive.Backend {
	case "", "none", "memory", "local":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
	}
	switch c.PubSub.Backend {
	case "", "none", "memory":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required for the pubsub backend")
		}
	default:
		return fmt.Errorf("pubsub.backend %q is not supported", c.PubSub.Backend)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SummarizerAPIKey returns the key for the selected provider.
func (c Config) SummarizerAPIKey() string {
	switch c.Summarizer.Provider {
	case ProviderOpenAI:
		return c.Summarizer.OpenAIAPIKey
	case ProviderGemini:
		return c.Summarizer.GeminiAPIKey
	default:
		return ""
	}
}

// FetchTimeout converts fetch.timeout_seconds to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// SummarizerTimeout converts summarizer.timeout_seconds to a duration.
func (c Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}

// ShutdownTimeout converts server.shutdown_timeout_seconds to a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
