package pipeline

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/site-insight/internal/jsonx"
	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
)

// Topical map field limits.
const (
	maxDescriptionChars  = 1500
	maxSearchIntent      = 5
	maxTargetAudiences   = 10
	maxConversionMethods = 15
	maxKeyTopics         = 15
	maxAdvantages        = 10
	maxTechStack         = 10
)

// extractTopicalMap issues the large structured-extraction request for a
// target, optionally enriched with headings from sitemap-discovered pages.
// A failed extraction retries once with a simplified metadata-only prompt;
// if that also fails the target fails, since the topical map is the core
// deliverable per target.
func (p *Pipeline) extractTopicalMap(ctx context.Context, page model.PageContent, meter *usageMeter) (model.TopicalMap, error) {
	supplementary := p.fetchSupplementary(ctx, page.URL)

	tm, err := p.completeTopicalMap(ctx, topicalMapPrompt(page, supplementary), meter)
	if err == nil {
		return normalizeTopicalMap(tm, page), nil
	}
	zap.L().Warn("pipeline: topical map extraction failed, retrying simplified",
		zap.String("url", page.URL),
		zap.Error(err),
	)

	tm, err = p.completeTopicalMap(ctx, topicalSimplifiedPrompt(page), meter)
	if err != nil {
		return model.TopicalMap{}, err
	}
	return normalizeTopicalMap(tm, page), nil
}

func (p *Pipeline) completeTopicalMap(ctx context.Context, prompt string, meter *usageMeter) (model.TopicalMap, error) {
	raw, usage, err := p.completeWithRetry(ctx, llm.Request{
		Tier:      llm.TierQuality,
		System:    topicalSystemPrompt,
		Prompt:    prompt,
		MaxTokens: p.cfg.TopicalMapMaxTokens,
	}, "topical_map")
	meter.add(llm.TierQuality, usage, p.costOf)
	if err != nil {
		return model.TopicalMap{}, err
	}

	var tm model.TopicalMap
	if err := jsonx.DecodeObject(raw, &tm); err != nil {
		return model.TopicalMap{}, err
	}
	return tm, nil
}

// fetchSupplementary scrapes a few sitemap-priority pages for extra context.
// Strictly best-effort; discovery and fetching failures yield nothing.
func (p *Pipeline) fetchSupplementary(ctx context.Context, baseURL string) []model.PageContent {
	if p.sitemap == nil || p.cfg.MaxSupplementaryPages <= 0 {
		return nil
	}
	urls := p.sitemap.PriorityPages(ctx, baseURL, p.cfg.MaxSupplementaryPages+1)

	// The base URL leads the list and is already acquired.
	filtered := urls[:0]
	for _, u := range urls {
		if u == baseURL {
			continue
		}
		filtered = append(filtered, u)
	}
	if len(filtered) > p.cfg.MaxSupplementaryPages {
		filtered = filtered[:p.cfg.MaxSupplementaryPages]
	}
	if len(filtered) == 0 {
		return nil
	}
	return p.acquirer.FetchAll(ctx, filtered, p.cfg.MaxConcurrentFetches)
}

// normalizeTopicalMap fills identity fields the model left blank and applies
// the documented field limits.
func normalizeTopicalMap(tm model.TopicalMap, page model.PageContent) model.TopicalMap {
	host := domainOf(page.URL)
	if tm.Domain == "" {
		tm.Domain = host
	}
	if tm.CentralEntity == "" {
		tm.CentralEntity = centralEntityFromDomain(host)
	}
	if tm.BusinessDescription == "" {
		tm.BusinessDescription = page.Description
	}
	if len(tm.BusinessDescription) > maxDescriptionChars {
		tm.BusinessDescription = tm.BusinessDescription[:maxDescriptionChars]
	}

	tm.SearchIntent = capList(tm.SearchIntent, maxSearchIntent)
	tm.TargetAudiences = capList(tm.TargetAudiences, maxTargetAudiences)
	tm.ConversionMethods = capList(tm.ConversionMethods, maxConversionMethods)
	tm.KeyTopics = capList(tm.KeyTopics, maxKeyTopics)
	tm.CompetitiveAdvantages = capList(tm.CompetitiveAdvantages, maxAdvantages)
	tm.TechnologyStack = capList(tm.TechnologyStack, maxTechStack)
	return tm
}

func capList(in []string, limit int) []string {
	out := in[:0:len(in)]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// domainOf extracts the registrable-looking host from a URL, dropping any
// leading www.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(rawURL, "www.")
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// centralEntityFromDomain turns "acme-corp.com" into "Acme Corp".
func centralEntityFromDomain(host string) string {
	name := host
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}
