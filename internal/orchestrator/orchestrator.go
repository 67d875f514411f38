// Package orchestrator fans an analysis out across its targets, aggregates
// the per-target results into one record, and commits exactly one terminal
// store update per run. Partial success is success: failed targets are
// recorded and excluded, and the whole analysis fails only when nothing
// succeeded.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/internal/pipeline"
	"github.com/sells-group/site-insight/internal/store"
)

// TargetRunner runs the analysis pipeline for one target. Satisfied by
// pipeline.Pipeline.
type TargetRunner interface {
	Run(ctx context.Context, analysisID, targetURL string) (*model.TargetResult, error)
}

// Tracker receives run-level progress transitions. Satisfied by
// progress.Tracker.
type Tracker interface {
	Create(id string, totalSteps int)
	Complete(id, message string)
	Fail(id, message string)
}

// Config holds orchestrator tuning knobs.
type Config struct {
	// MaxConcurrentTargets bounds parallel target pipelines.
	MaxConcurrentTargets int
	// EmptySetSimilarity is the Jaccard score assigned when either topic set
	// is empty.
	EmptySetSimilarity float64
}

// Orchestrator coordinates one analysis across all its targets.
type Orchestrator struct {
	cfg     Config
	runner  TargetRunner
	gateway llm.Gateway
	store   store.Store
	tracker Tracker
	costOf  pipeline.CostFunc
}

// New creates an Orchestrator. tracker and costOf may be nil.
func New(cfg Config, runner TargetRunner, gateway llm.Gateway, st store.Store, tracker Tracker, costOf pipeline.CostFunc) *Orchestrator {
	if cfg.MaxConcurrentTargets <= 0 {
		cfg.MaxConcurrentTargets = 3
	}
	if cfg.EmptySetSimilarity <= 0 {
		cfg.EmptySetSimilarity = 0.3
	}
	return &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		gateway: gateway,
		store:   st,
		tracker: tracker,
		costOf:  costOf,
	}
}

// Run executes the analysis identified by analysisID over targets and writes
// its terminal state to the store. The returned result is nil when every
// target failed; the store record carries the first failure's cause.
func (o *Orchestrator) Run(ctx context.Context, analysisID string, targets []string) (*model.AnalysisResult, error) {
	log := zap.L().With(zap.String("analysis_id", analysisID), zap.Int("targets", len(targets)))
	log.Info("orchestrator: starting analysis")

	if o.tracker != nil {
		o.tracker.Create(analysisID, pipeline.TotalSteps)
	}

	// Slots are indexed by input position so "first failure" is the first
	// submitted target that failed, not a race winner.
	results := make([]*model.TargetResult, len(targets))
	failures := make([]*model.TargetFailure, len(targets))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentTargets)

	for i, target := range targets {
		g.Go(func() error {
			result, err := o.runner.Run(gCtx, analysisID, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[i] = targetFailure(target, err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	succeeded := make([]*model.TargetResult, 0, len(targets))
	var failed []model.TargetFailure
	var firstCause string
	for i := range targets {
		if results[i] != nil {
			succeeded = append(succeeded, results[i])
			continue
		}
		failure := failures[i]
		failed = append(failed, *failure)
		if firstCause == "" {
			firstCause = failure.Reason
		}
	}

	if len(succeeded) == 0 {
		log.Warn("orchestrator: all targets failed", zap.String("cause", firstCause))
		if err := o.store.FailAnalysis(ctx, analysisID, firstCause); err != nil {
			log.Error("orchestrator: record failure", zap.Error(err))
		}
		if o.tracker != nil {
			o.tracker.Fail(analysisID, firstCause)
		}
		return nil, eris.Errorf("orchestrator: all targets failed: %s", firstCause)
	}

	result := o.assemble(ctx, succeeded, failed)

	if err := o.store.CompleteAnalysis(ctx, analysisID, result); err != nil {
		log.Error("orchestrator: record result", zap.Error(err))
		if o.tracker != nil {
			o.tracker.Fail(analysisID, "failed to persist result")
		}
		return nil, eris.Wrap(err, "orchestrator: complete analysis")
	}
	if o.tracker != nil {
		o.tracker.Complete(analysisID, "analysis complete")
	}
	log.Info("orchestrator: analysis complete",
		zap.Int("succeeded", len(succeeded)),
		zap.Int("failed", len(failed)),
	)
	return result, nil
}

// assemble aggregates succeeded targets into the analysis result. The
// comparison is computed only when at least two targets succeeded.
func (o *Orchestrator) assemble(ctx context.Context, succeeded []*model.TargetResult, failed []model.TargetFailure) *model.AnalysisResult {
	meter := &runMeter{}
	entitiesByDomain := make(map[string]model.DomainEntities, len(succeeded))

	result := &model.AnalysisResult{FailedTargets: failed}
	for _, r := range succeeded {
		result.Pages = append(result.Pages, r.Page)
		result.TopicalMaps = append(result.TopicalMaps, r.TopicalMap)
		meter.addTarget(r)
		if !r.Entities.Empty() {
			entitiesByDomain[r.TopicalMap.Domain] = r.Entities
		}
	}
	if len(entitiesByDomain) > 0 {
		result.Graph = pipeline.BuildKnowledgeGraph(entitiesByDomain)
	}
	if len(succeeded) >= 2 {
		result.Comparison = o.compare(ctx, succeeded, meter)
	}

	result.TokenUsage, result.EstimatedCost = meter.totals()
	return result
}

func targetFailure(target string, err error) *model.TargetFailure {
	failure := &model.TargetFailure{URL: target, Reason: err.Error()}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		failure.Stage = stageErr.Stage
		failure.Reason = stageErr.Err.Error()
	}
	return failure
}

// runMeter accumulates usage and cost across targets plus the comparison
// call.
type runMeter struct {
	mu    sync.Mutex
	usage model.TokenUsage
	cost  float64
}

func (m *runMeter) addTarget(r *model.TargetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(r.Usage)
	m.cost += r.Cost
}

func (m *runMeter) add(tier llm.Tier, u llm.Usage, costOf pipeline.CostFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Add(model.TokenUsage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens})
	if costOf != nil {
		m.cost += costOf(tier, u)
	}
}

func (m *runMeter) totals() (model.TokenUsage, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, m.cost
}
