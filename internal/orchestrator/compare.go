package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-insight/internal/jsonx"
	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/internal/resilience"
)

const (
	maxSummaryH2       = 10
	maxTextPreview     = 1000
	maxRichTextPreview = 1500
	maxServiceOverlap  = 15
	maxUniqueTopics    = 5
)

const comparisonSystemPrompt = `You are a competitive analyst. You compare businesses from structured summaries. Respond with a single JSON object and nothing else.`

// compare builds a cross-target comparison. The AI path uses the quality
// tier; any gateway or extraction failure falls back to the deterministic
// topic-overlap comparison, so this never returns an error.
func (o *Orchestrator) compare(ctx context.Context, results []*model.TargetResult, meter *runMeter) *model.Comparison {
	cmp, err := o.compareAI(ctx, results, meter)
	if err == nil {
		return cmp
	}
	zap.L().Warn("orchestrator: ai comparison failed, using topic overlap fallback", zap.Error(err))
	return fallbackComparison(results, o.cfg.EmptySetSimilarity)
}

func (o *Orchestrator) compareAI(ctx context.Context, results []*model.TargetResult, meter *runMeter) (*model.Comparison, error) {
	type completion struct {
		text  string
		usage llm.Usage
	}
	cfg := resilience.RetryConfig{
		ShouldRetry: llm.IsRateLimited,
		OnRetry:     resilience.RetryLogger("llm", "comparison"),
	}
	result, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (completion, error) {
		text, usage, err := o.gateway.Complete(ctx, llm.Request{
			Tier:   llm.TierQuality,
			System: comparisonSystemPrompt,
			Prompt: comparisonPrompt(results),
		})
		return completion{text: text, usage: usage}, err
	})
	meter.add(llm.TierQuality, result.usage, o.costOf)
	if err != nil {
		return nil, err
	}

	var cmp model.Comparison
	if err := jsonx.DecodeObject(result.text, &cmp); err != nil {
		return nil, err
	}
	cmp.Method = model.ComparisonMethodAI
	if len(cmp.ServiceOverlap) > maxServiceOverlap {
		cmp.ServiceOverlap = cmp.ServiceOverlap[:maxServiceOverlap]
	}
	if len(cmp.SimilarityMatrix.Domains) == 0 {
		cmp.SimilarityMatrix = jaccardMatrix(results, o.cfg.EmptySetSimilarity)
	}
	return &cmp, nil
}

func comparisonPrompt(results []*model.TargetResult) string {
	var b strings.Builder
	b.WriteString("Compare these businesses based on their website analyses.\n")

	for i, r := range results {
		tm := r.TopicalMap
		fmt.Fprintf(&b, "\n--- Site %d: %s ---\n", i+1, tm.Domain)
		fmt.Fprintf(&b, "Title: %s\n", r.Page.Title)
		fmt.Fprintf(&b, "Description: %s\n", r.Page.Description)
		fmt.Fprintf(&b, "Business model: %s\n", tm.BusinessModel)
		fmt.Fprintf(&b, "Audiences: %s\n", strings.Join(tm.TargetAudiences, ", "))
		fmt.Fprintf(&b, "Key topics: %s\n", strings.Join(tm.KeyTopics, ", "))

		h2 := r.Page.Headings.H2
		if len(h2) > maxSummaryH2 {
			h2 = h2[:maxSummaryH2]
		}
		if len(h2) > 0 {
			fmt.Fprintf(&b, "H2: %s\n", strings.Join(h2, " | "))
		}

		preview := r.Page.BodyText
		limit := maxTextPreview
		if r.Page.Markdown != "" {
			preview = r.Page.Markdown
			limit = maxRichTextPreview
		}
		if len(preview) > limit {
			preview = preview[:limit]
		}
		fmt.Fprintf(&b, "Content preview: %s\n", preview)
	}

	b.WriteString(`
Return a JSON object:
{
  "business_models": {"<domain>": "<model>"},
  "service_overlap": [],
  "unique_services": {"<domain>": []},
  "audience_comparison": {"<domain>": []},
  "technology_stack": {"<domain>": []},
  "geographic_coverage": {"<domain>": "<coverage>"},
  "similarity_matrix": {"domains": [], "scores": [[]]}
}
service_overlap max 15 entries. Similarity scores are 0.0 to 1.0 with a 1.0 diagonal.`)
	return b.String()
}

// fallbackComparison derives a comparison from already-extracted topical maps
// alone, with pairwise Jaccard similarity over key-topic sets.
func fallbackComparison(results []*model.TargetResult, emptySim float64) *model.Comparison {
	cmp := &model.Comparison{
		Method:             model.ComparisonMethodFallback,
		BusinessModels:     make(map[string]string, len(results)),
		UniqueServices:     make(map[string][]string, len(results)),
		AudienceComparison: make(map[string][]string, len(results)),
		TechnologyStack:    make(map[string][]string, len(results)),
		SimilarityMatrix:   jaccardMatrix(results, emptySim),
	}

	counts := make(map[string]int)
	for _, r := range results {
		for topic := range topicSet(r.TopicalMap.KeyTopics) {
			counts[topic]++
		}
	}

	for _, r := range results {
		domain := r.TopicalMap.Domain
		cmp.BusinessModels[domain] = r.TopicalMap.BusinessModel
		if len(r.TopicalMap.TargetAudiences) > 0 {
			cmp.AudienceComparison[domain] = r.TopicalMap.TargetAudiences
		}
		if len(r.TopicalMap.TechnologyStack) > 0 {
			cmp.TechnologyStack[domain] = r.TopicalMap.TechnologyStack
		}

		var unique []string
		for _, topic := range r.TopicalMap.KeyTopics {
			if counts[strings.ToLower(topic)] == 1 {
				unique = append(unique, topic)
			}
			if len(unique) == maxUniqueTopics {
				break
			}
		}
		if len(unique) > 0 {
			cmp.UniqueServices[domain] = unique
		}
	}

	var overlap []string
	seen := make(map[string]struct{})
	for _, r := range results {
		for _, topic := range r.TopicalMap.KeyTopics {
			key := strings.ToLower(topic)
			if counts[key] < 2 {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			overlap = append(overlap, topic)
			if len(overlap) == maxServiceOverlap {
				break
			}
		}
		if len(overlap) == maxServiceOverlap {
			break
		}
	}
	cmp.ServiceOverlap = overlap
	return cmp
}

// jaccardMatrix computes pairwise topic-set similarity. Pairs where either
// set is empty score the configured constant rather than zero, so a failed
// extraction doesn't read as total dissimilarity.
func jaccardMatrix(results []*model.TargetResult, emptySim float64) model.SimilarityMatrix {
	matrix := model.SimilarityMatrix{
		Domains: make([]string, len(results)),
		Scores:  make([][]float64, len(results)),
	}
	sets := make([]map[string]struct{}, len(results))
	for i, r := range results {
		matrix.Domains[i] = r.TopicalMap.Domain
		sets[i] = topicSet(r.TopicalMap.KeyTopics)
	}

	for i := range results {
		matrix.Scores[i] = make([]float64, len(results))
		for j := range results {
			if i == j {
				matrix.Scores[i][j] = 1.0
				continue
			}
			matrix.Scores[i][j] = jaccard(sets[i], sets[j], emptySim)
		}
	}
	return matrix
}

func jaccard(a, b map[string]struct{}, emptySim float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return emptySim
	}
	var intersection int
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return math.Round(float64(intersection)/float64(union)*100) / 100
}

func topicSet(topics []string) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
