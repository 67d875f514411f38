package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-insight/internal/cost"
	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/orchestrator"
	"github.com/sells-group/site-insight/internal/pipeline"
	"github.com/sells-group/site-insight/internal/progress"
	"github.com/sells-group/site-insight/internal/resilience"
	"github.com/sells-group/site-insight/internal/scrape"
	"github.com/sells-group/site-insight/internal/sitemap"
	"github.com/sells-group/site-insight/internal/store"
	anthropicpkg "github.com/sells-group/site-insight/pkg/anthropic"
	"github.com/sells-group/site-insight/pkg/groq"
	"github.com/sells-group/site-insight/pkg/jina"
	"github.com/sells-group/site-insight/pkg/serpapi"
)

// analysisEnv holds all initialized clients and the orchestrator needed by
// the analyze and serve commands.
type analysisEnv struct {
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Tracker      *progress.Tracker
}

// Close releases resources held by the environment.
func (ae *analysisEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initAnalysis sets up the store, model gateway, scrape chain, and
// orchestrator. Callers should defer env.Close().
func initAnalysis(ctx context.Context, mode string) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Model gateway. Either backend may be absent; the gateway rejects
	// requests for the missing tier.
	var fastClient groq.Client
	if cfg.Groq.Key != "" {
		opts := []groq.Option{groq.WithBaseURL(cfg.Groq.BaseURL), groq.WithModel(cfg.Groq.Model)}
		if cfg.Groq.RequestsPerMinute > 0 {
			opts = append(opts, groq.WithRateLimit(float64(cfg.Groq.RequestsPerMinute)/60))
		}
		fastClient = groq.NewClient(cfg.Groq.Key, opts...)
	} else {
		zap.L().Warn("groq not configured, fast tier unavailable")
	}
	var qualityClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		qualityClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("anthropic not configured, quality tier unavailable")
	}
	gateway := llm.New(llm.Config{
		FastModel:    cfg.Groq.Model,
		QualityModel: cfg.Anthropic.Model,
	}, fastClient, qualityClient)

	// Scrape chain: local HTTP first, Jina reader for blocked pages.
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	chain := scrape.NewChain(
		scrape.NewLocalScraper(scrape.WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs)*time.Second)),
		scrape.NewJinaScraper(jinaClient, scrape.WithBreaker(
			cfg.Scrape.BreakerFailures,
			time.Duration(cfg.Scrape.BreakerCooldownSec)*time.Second,
		)),
	)

	var serpClient serpapi.Client
	if cfg.Serp.Key != "" {
		serpClient = serpapi.NewClient(cfg.Serp.Key, serpapi.WithBaseURL(cfg.Serp.BaseURL))
		zap.L().Info("serp enrichment enabled")
	}

	tracker := progress.NewTracker(time.Duration(cfg.Progress.GraceSecs) * time.Second)
	calc := cost.NewCalculator(cfg.Pricing)
	costOf := func(tier llm.Tier, usage llm.Usage) float64 {
		if tier == llm.TierQuality {
			return calc.Anthropic(cfg.Anthropic.Model, usage.InputTokens, usage.OutputTokens)
		}
		return calc.Groq(cfg.Groq.Model, usage.InputTokens, usage.OutputTokens)
	}

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Pipeline.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Pipeline.RetryAttempts
	}
	retryCfg.ShouldRetry = llm.IsRateLimited

	p := pipeline.New(pipeline.Config{
		MaxSupplementaryPages: cfg.Sitemap.MaxPages,
		MaxConcurrentFetches:  cfg.Scrape.MaxConcurrentFetches,
		SerpTopics:            cfg.Pipeline.SerpTopics,
		SerpQueryCost:         cfg.Pricing.Serp.PerQuery,
		TopicalMapMaxTokens:   cfg.Pipeline.TopicalMapMaxTokens,
		Retry:                 retryCfg,
	}, gateway, chain, sitemap.NewDiscoverer(), serpClient, tracker, costOf)

	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrentTargets: cfg.Orchestrator.MaxConcurrentTargets,
		EmptySetSimilarity:   cfg.Orchestrator.EmptySetSimilarity,
	}, p, gateway, st, tracker, costOf)

	return &analysisEnv{
		Store:        st,
		Orchestrator: orch,
		Tracker:      tracker,
	}, nil
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
