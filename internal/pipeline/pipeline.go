// Package pipeline runs the per-target analysis state machine: acquire the
// page, extract domain entities and a topical map in parallel, enrich with
// search rankings, and assemble one immutable result. A target either
// produces a full TargetResult or fails with the stage that killed it.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/internal/resilience"
	"github.com/sells-group/site-insight/pkg/serpapi"
)

// TotalSteps is the number of progress steps one target pipeline emits.
const TotalSteps = 5

// Progress step indices, strictly increasing through a run.
const (
	stepAcquiring = iota + 1
	stepGraph
	stepTopicalMap
	stepEnriching
	stepFinalizing
)

// Stage names recorded on target failures.
const (
	StageAcquisition = "acquisition"
	StageGraph       = "graph_extraction"
	StageTopicalMap  = "topical_map"
)

// StageError marks which pipeline stage failed a target.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Acquirer fetches page content. Satisfied by scrape.Chain.
type Acquirer interface {
	Fetch(ctx context.Context, targetURL string) (*model.PageContent, error)
	FetchAll(ctx context.Context, urls []string, maxConcurrent int) []model.PageContent
}

// Discoverer lists high-signal pages for a site. Satisfied by
// sitemap.Discoverer.
type Discoverer interface {
	PriorityPages(ctx context.Context, baseURL string, limit int) []string
}

// ProgressSink receives step updates. Satisfied by progress.Tracker. Updates
// must never block; the pipeline does not check for errors.
type ProgressSink interface {
	Update(id string, step int, message string)
}

// CostFunc prices one completion on a tier in USD. Nil disables cost
// attribution.
type CostFunc func(tier llm.Tier, usage llm.Usage) float64

// Config holds pipeline tuning knobs.
type Config struct {
	// MaxSupplementaryPages bounds sitemap pages fetched for topical context.
	MaxSupplementaryPages int
	// MaxConcurrentFetches bounds parallel supplementary fetches.
	MaxConcurrentFetches int
	// SerpTopics is how many key topics get a ranking lookup.
	SerpTopics int
	// SerpQueryCost is the flat USD cost charged per SERP lookup.
	SerpQueryCost float64
	// TopicalMapMaxTokens overrides the gateway default for the bulk call.
	TopicalMapMaxTokens int
	// Retry applies to rate-limited LLM calls.
	Retry resilience.RetryConfig
}

// Pipeline runs the analysis state machine for single targets.
type Pipeline struct {
	cfg      Config
	gateway  llm.Gateway
	acquirer Acquirer
	sitemap  Discoverer
	serp     serpapi.Client
	progress ProgressSink
	costOf   CostFunc
}

// New creates a Pipeline. sitemap, serp, progress, and costOf may be nil;
// the corresponding behavior is skipped.
func New(
	cfg Config,
	gateway llm.Gateway,
	acquirer Acquirer,
	sitemap Discoverer,
	serp serpapi.Client,
	progress ProgressSink,
	costOf CostFunc,
) *Pipeline {
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = llm.IsRateLimited
	}
	return &Pipeline{
		cfg:      cfg,
		gateway:  gateway,
		acquirer: acquirer,
		sitemap:  sitemap,
		serp:     serp,
		progress: progress,
		costOf:   costOf,
	}
}

// Run analyzes one target and returns its assembled result. Progress is
// reported under analysisID; with several targets sharing one analysis the
// sink's monotonic guard keeps the furthest step visible.
func (p *Pipeline) Run(ctx context.Context, analysisID, targetURL string) (*model.TargetResult, error) {
	log := zap.L().With(zap.String("analysis_id", analysisID), zap.String("url", targetURL))
	log.Info("pipeline: starting target")

	p.emit(analysisID, stepAcquiring, "fetching site content")
	page, err := p.acquirer.Fetch(ctx, targetURL)
	if err != nil {
		log.Warn("pipeline: acquisition failed", zap.Error(err))
		return nil, &StageError{Stage: StageAcquisition, Err: err}
	}

	meter := &usageMeter{}
	var (
		entities model.DomainEntities
		tm       model.TopicalMap
	)

	// Graph and topical map extraction read only the acquired page, so they
	// run in parallel. Graph failure degrades to empty entities; topical map
	// failure fails the target.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.emit(analysisID, stepGraph, "extracting domain entities")
		entities = p.extractEntities(gCtx, *page, meter)
		return nil
	})
	g.Go(func() error {
		p.emit(analysisID, stepTopicalMap, "building topical map")
		m, tmErr := p.extractTopicalMap(gCtx, *page, meter)
		if tmErr != nil {
			return &StageError{Stage: StageTopicalMap, Err: tmErr}
		}
		tm = m
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("pipeline: target failed", zap.Error(err))
		return nil, err
	}

	p.emit(analysisID, stepEnriching, "looking up search rankings")
	rankings := p.lookupRankings(ctx, targetURL, tm.KeyTopics, meter)

	p.emit(analysisID, stepFinalizing, "assembling results")
	usage, estCost := meter.totals()
	log.Info("pipeline: target succeeded",
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
	)
	return &model.TargetResult{
		URL:        targetURL,
		Page:       *page,
		Entities:   entities,
		TopicalMap: tm,
		Rankings:   rankings,
		Usage:      usage,
		Cost:       estCost,
	}, nil
}

// completeWithRetry issues one gateway call, retrying only rate-limit-class
// errors per the configured policy.
func (p *Pipeline) completeWithRetry(ctx context.Context, req llm.Request, operation string) (string, llm.Usage, error) {
	type completion struct {
		text  string
		usage llm.Usage
	}
	cfg := p.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("llm", operation)
	}
	result, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (completion, error) {
		text, usage, err := p.gateway.Complete(ctx, req)
		return completion{text: text, usage: usage}, err
	})
	return result.text, result.usage, err
}

func (p *Pipeline) emit(analysisID string, step int, message string) {
	if p.progress != nil {
		p.progress.Update(analysisID, step, message)
	}
}

// usageMeter accumulates token usage and estimated cost across the parallel
// extraction goroutines.
type usageMeter struct {
	mu    sync.Mutex
	usage model.TokenUsage
	cost  float64
}

func (m *usageMeter) add(tier llm.Tier, u llm.Usage, costOf CostFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(model.TokenUsage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens})
	if costOf != nil {
		m.cost += costOf(tier, u)
	}
}

func (m *usageMeter) addSerp(queryCost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost += queryCost
}

func (m *usageMeter) totals() (model.TokenUsage, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, m.cost
}
