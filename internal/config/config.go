// Package config loads application configuration from an optional yaml file
// and SITEINSIGHT_-prefixed environment variables, with working defaults for
// everything except credentials.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/site-insight/internal/cost"
	"github.com/sells-group/site-insight/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Groq         GroqConfig         `yaml:"groq" mapstructure:"groq"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Jina         JinaConfig         `yaml:"jina" mapstructure:"jina"`
	Serp         SerpConfig         `yaml:"serp" mapstructure:"serp"`
	Scrape       ScrapeConfig       `yaml:"scrape" mapstructure:"scrape"`
	Sitemap      SitemapConfig      `yaml:"sitemap" mapstructure:"sitemap"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Progress     ProgressConfig     `yaml:"progress" mapstructure:"progress"`
	Pricing      cost.Rates         `yaml:"pricing" mapstructure:"pricing"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// GroqConfig holds fast-tier model settings.
type GroqConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	// RequestsPerMinute enables a client-side limiter when > 0.
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AnthropicConfig holds quality-tier model settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina Reader settings. The key is optional; the reader
// works unauthenticated at lower rate limits.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerpConfig holds SERP enrichment settings. No key disables enrichment.
type SerpConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScrapeConfig configures content acquisition.
type ScrapeConfig struct {
	TimeoutSecs          int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
	// BreakerFailures trips the Jina breaker after this many consecutive
	// failures.
	BreakerFailures    int `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerCooldownSec int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// SitemapConfig configures supplementary page discovery.
type SitemapConfig struct {
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// PipelineConfig configures per-target analysis.
type PipelineConfig struct {
	SerpTopics          int `yaml:"serp_topics" mapstructure:"serp_topics"`
	TopicalMapMaxTokens int `yaml:"topical_map_max_tokens" mapstructure:"topical_map_max_tokens"`
	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// OrchestratorConfig configures multi-target runs.
type OrchestratorConfig struct {
	MaxConcurrentTargets int     `yaml:"max_concurrent_targets" mapstructure:"max_concurrent_targets"`
	EmptySetSimilarity   float64 `yaml:"empty_set_similarity" mapstructure:"empty_set_similarity"`
}

// ProgressConfig configures the in-memory progress tracker.
type ProgressConfig struct {
	// GraceSecs is how long terminal entries survive after the last poll.
	GraceSecs int `yaml:"grace_secs" mapstructure:"grace_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("SITEINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "site-insight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	// Credentials default empty so AutomaticEnv picks up SITEINSIGHT_*_KEY;
	// viper only reads env vars for keys it already knows about.
	v.SetDefault("groq.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("serp.key", "")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.requests_per_minute", 0)
	v.SetDefault("store.pool.max_conns", 0)
	v.SetDefault("store.pool.min_conns", 0)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("serp.base_url", "https://serpapi.com")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_concurrent_fetches", 4)
	v.SetDefault("scrape.breaker_failures", 3)
	v.SetDefault("scrape.breaker_cooldown_secs", 60)
	v.SetDefault("sitemap.max_pages", 3)
	v.SetDefault("pipeline.serp_topics", 3)
	v.SetDefault("pipeline.topical_map_max_tokens", 8192)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("orchestrator.max_concurrent_targets", 3)
	v.SetDefault("orchestrator.empty_set_similarity", 0.3)
	v.SetDefault("progress.grace_secs", 60)

	for provider, models := range map[string]map[string]cost.ModelRate{
		"anthropic": cost.DefaultRates().Anthropic,
		"groq":      cost.DefaultRates().Groq,
	} {
		for name, rate := range models {
			v.SetDefault("pricing."+provider+"."+name+".input", rate.Input)
			v.SetDefault("pricing."+provider+"."+name+".output", rate.Output)
		}
	}
	v.SetDefault("pricing.jina.per_mtok", cost.DefaultRates().Jina.PerMTok)
	v.SetDefault("pricing.serp.per_query", cost.DefaultRates().Serp.PerQuery)

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

// Validate checks the configuration for the given run mode: "analyze" for
// one-shot CLI runs, "serve" for the API server. Collects every problem
// instead of stopping at the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Groq.Key == "" && c.Anthropic.Key == "" {
		problems = append(problems, "at least one of groq.key or anthropic.key is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres")
	}
	if n := c.Orchestrator.MaxConcurrentTargets; n < 1 || n > 20 {
		problems = append(problems, "orchestrator.max_concurrent_targets must be between 1 and 20")
	}
	if s := c.Orchestrator.EmptySetSimilarity; s < 0 || s > 1 {
		problems = append(problems, "orchestrator.empty_set_similarity must be between 0 and 1")
	}
	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
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
