package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string       `yaml:"driver" mapstructure:"driver"`
	Path        string       `yaml:"path" mapstructure:"path"`
	DatabaseURL string       `yaml:"database_url" mapstructure:"database_url"`
	Pool        StorePoolCfg `yaml:"pool" mapstructure:"pool"`
}

// StorePoolCfg tunes the Postgres connection pool. Zero values keep
// the store's defaults; the SQLite driver ignores it.
type StorePoolCfg struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. FastModel runs the
// extraction batches and the cheap analysis passes; StrongModel runs
// consolidation, escalations, and the final synthesis.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	FastModel   string `yaml:"fast_model" mapstructure:"fast_model"`
	StrongModel string `yaml:"strong_model" mapstructure:"strong_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings (scrape fallback).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProvidersConfig holds credentials and tuning for the LinkedIn data
// providers. TuningFile optionally points at a YAML file overriding
// the built-in cascade orders.
type ProvidersConfig struct {
	Evaboot     EvabootConfig     `yaml:"evaboot" mapstructure:"evaboot"`
	Unipile     UnipileConfig     `yaml:"unipile" mapstructure:"unipile"`
	GhostGenius GhostGeniusConfig `yaml:"ghostgenius" mapstructure:"ghostgenius"`
	TuningFile  string            `yaml:"tuning_file" mapstructure:"tuning_file"`
}

// EvabootConfig holds Evaboot API settings.
type EvabootConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// UnipileConfig holds Unipile API settings.
type UnipileConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	AccountID string `yaml:"account_id" mapstructure:"account_id"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// GhostGeniusConfig holds Ghost Genius API settings. AccountIDs is a
// rotating pool; a run marks an account exhausted when it hits a rate
// limit and moves on to the next.
type GhostGeniusConfig struct {
	Key        string   `yaml:"key" mapstructure:"key"`
	AccountIDs []string `yaml:"account_ids" mapstructure:"account_ids"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
}

// EnrichConfig bounds the LinkedIn enrichment stage.
type EnrichConfig struct {
	MaxExecutives      int     `yaml:"max_executives" mapstructure:"max_executives"`
	MaxPastExecutives  int     `yaml:"max_past_executives" mapstructure:"max_past_executives"`
	PostsTopN          int     `yaml:"posts_top_n" mapstructure:"posts_top_n"`
	PostsPages         int     `yaml:"posts_pages" mapstructure:"posts_pages"`
	CacheFreshnessDays int     `yaml:"cache_freshness_days" mapstructure:"cache_freshness_days"`
	RatePerSecond      float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RetryDelaySecs     int     `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
}

// BatchConfig bounds the profile extraction batches.
type BatchConfig struct {
	Size          int `yaml:"size" mapstructure:"size"`
	TokenBudget   int `yaml:"token_budget" mapstructure:"token_budget"`
	CharsPerToken int `yaml:"chars_per_token" mapstructure:"chars_per_token"`
	StrongLots    int `yaml:"strong_lots" mapstructure:"strong_lots"`
}

// AgentConfig bounds the analysis unit runner.
type AgentConfig struct {
	MaxIterations      int `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxContextChars    int `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	ToolResultMaxChars int `yaml:"tool_result_max_chars" mapstructure:"tool_result_max_chars"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the CRM
// note sink.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// SlackConfig holds the Slack notification webhook.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	DealFormat string `yaml:"deal_format" mapstructure:"deal_format"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// IntakeConfig holds defaults applied to incoming audit requests.
type IntakeConfig struct {
	DefaultCountry string `yaml:"default_country" mapstructure:"default_country"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "audit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("intake.default_country", "France")
	v.SetDefault("anthropic.fast_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.strong_model", "claude-opus-4-6")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("providers.evaboot.base_url", "https://api.evaboot.com/v1")
	v.SetDefault("providers.unipile.base_url", "https://api.unipile.com/v1")
	v.SetDefault("providers.ghostgenius.base_url", "https://api.ghostgenius.fr/v2")
	v.SetDefault("enrich.max_executives", 50)
	v.SetDefault("enrich.max_past_executives", 10)
	v.SetDefault("enrich.posts_top_n", 15)
	v.SetDefault("enrich.posts_pages", 2)
	v.SetDefault("enrich.cache_freshness_days", 100)
	v.SetDefault("enrich.rate_per_second", 0.5)
	v.SetDefault("enrich.retry_delay_secs", 30)
	v.SetDefault("batch.size", 10)
	v.SetDefault("batch.token_budget", 250000)
	v.SetDefault("batch.chars_per_token", 4)
	v.SetDefault("batch.strong_lots", 4)
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.max_context_chars", 150000)
	v.SetDefault("agent.tool_result_max_chars", 10000)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a given mode needs are present.
// Mode "audit" covers the run command, "serve" the webhook server,
// "store" the commands that only touch the database.
func (c *Config) Validate(mode string) error {
	var problems []string

	storeProblems := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}
	auditProblems := func() {
		storeProblems()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Batch.Size <= 0 {
			problems = append(problems, "batch.size must be > 0")
		}
		if c.Agent.MaxIterations <= 0 {
			problems = append(problems, "agent.max_iterations must be > 0")
		}
	}

	switch mode {
	case "audit":
		auditProblems()
	case "serve":
		auditProblems()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
		storeProblems()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
