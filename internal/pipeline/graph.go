package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-insight/internal/jsonx"
	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
)

// Per-category caps for extracted entities.
const (
	maxServices     = 8
	maxProducts     = 8
	maxTechnologies = 6
	maxAudiences    = 5
	maxTopics       = 6
	maxLabelRunes   = 40
)

// Node sizes for the rendered graph.
const (
	domainNodeSize = 80
	entityNodeSize = 35
)

// palette rotates across domain clusters.
var palette = []string{
	"#4f46e5", // indigo
	"#059669", // emerald
	"#d97706", // amber
	"#dc2626", // red
	"#7c3aed", // violet
	"#0891b2", // cyan
}

// categoryLabels maps entity category to the edge label used for the
// domain-to-entity link.
var categoryLabels = []struct {
	category string
	label    string
}{
	{"service", "offers"},
	{"product", "sells"},
	{"technology", "uses"},
	{"audience", "targets"},
	{"topic", "covers"},
}

// extractEntities pulls categorized entities out of the acquired page. A
// failed extraction retries once with a simplified prompt; if that also
// fails the result is simply empty. The target keeps going either way.
func (p *Pipeline) extractEntities(ctx context.Context, page model.PageContent, meter *usageMeter) model.DomainEntities {
	entities, err := p.completeEntities(ctx, entityPrompt(page), meter)
	if err == nil {
		return cleanEntities(entities)
	}
	zap.L().Warn("pipeline: entity extraction failed, retrying simplified",
		zap.String("url", page.URL),
		zap.Error(err),
	)

	entities, err = p.completeEntities(ctx, entitySimplifiedPrompt(page), meter)
	if err != nil {
		zap.L().Warn("pipeline: simplified entity extraction failed, continuing without graph entities",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		return model.DomainEntities{}
	}
	return cleanEntities(entities)
}

// entityShape declares the categories expected back from the model; omitted
// or null categories default to empty.
var entityShape = jsonx.Shape{
	"services":     []any{},
	"products":     []any{},
	"technologies": []any{},
	"audiences":    []any{},
	"topics":       []any{},
}

func (p *Pipeline) completeEntities(ctx context.Context, prompt string, meter *usageMeter) (model.DomainEntities, error) {
	raw, usage, err := p.completeWithRetry(ctx, llm.Request{
		Tier:     llm.TierFast,
		System:   entitySystemPrompt,
		Prompt:   prompt,
		JSONMode: true,
	}, "entity_extraction")
	meter.add(llm.TierFast, usage, p.costOf)
	if err != nil {
		return model.DomainEntities{}, err
	}

	obj, err := jsonx.ExtractObject(raw, entityShape)
	if err != nil {
		return model.DomainEntities{}, err
	}
	return model.DomainEntities{
		Services:     stringList(obj["services"]),
		Products:     stringList(obj["products"]),
		Technologies: stringList(obj["technologies"]),
		Audiences:    stringList(obj["audiences"]),
		Topics:       stringList(obj["topics"]),
	}, nil
}

// stringList keeps the string elements of a decoded JSON array, dropping
// anything else the model slipped in.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// cleanEntities dedupes each category case-sensitively, truncates labels, and
// applies the per-category cap.
func cleanEntities(e model.DomainEntities) model.DomainEntities {
	return model.DomainEntities{
		Services:     cleanList(e.Services, maxServices),
		Products:     cleanList(e.Products, maxProducts),
		Technologies: cleanList(e.Technologies, maxTechnologies),
		Audiences:    cleanList(e.Audiences, maxAudiences),
		Topics:       cleanList(e.Topics, maxTopics),
	}
}

func cleanList(in []string, limit int) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, limit)
	for _, v := range in {
		v = truncateLabel(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelRunes {
		return s
	}
	return string(runes[:maxLabelRunes])
}

// BuildKnowledgeGraph assembles one combined graph from per-domain entities.
// Each domain becomes a hub node with its entities clustered around it in a
// shared color; cross-category relationships are inferred between the top
// entries of related categories.
func BuildKnowledgeGraph(entitiesByDomain map[string]model.DomainEntities) *model.KnowledgeGraph {
	graph := &model.KnowledgeGraph{}

	domains := make([]string, 0, len(entitiesByDomain))
	for d := range entitiesByDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for i, domain := range domains {
		entities := entitiesByDomain[domain]
		color := palette[i%len(palette)]

		graph.Nodes = append(graph.Nodes, model.Node{
			ID:    domain,
			Label: domain,
			Type:  "domain",
			Color: color,
			Size:  domainNodeSize,
		})

		for _, cat := range categoryLabels {
			for _, label := range categoryEntities(entities, cat.category) {
				nodeID := domain + ":" + cat.category + ":" + label
				graph.Nodes = append(graph.Nodes, model.Node{
					ID:    nodeID,
					Label: label,
					Type:  cat.category,
					Color: color,
					Size:  entityNodeSize,
				})
				graph.Links = append(graph.Links, model.Link{
					Source: domain,
					Target: nodeID,
					Label:  cat.label,
				})
			}
		}

		graph.Links = append(graph.Links, inferredLinks(domain, entities)...)
	}
	return graph
}

func categoryEntities(e model.DomainEntities, category string) []string {
	switch category {
	case "service":
		return e.Services
	case "product":
		return e.Products
	case "technology":
		return e.Technologies
	case "audience":
		return e.Audiences
	case "topic":
		return e.Topics
	}
	return nil
}

// inferredLinks connects the top services to the top products ("offers") and
// the top technologies to the top services ("powers").
func inferredLinks(domain string, e model.DomainEntities) []model.Link {
	var links []model.Link
	for _, svc := range top(e.Services, 3) {
		for _, prod := range top(e.Products, 2) {
			links = append(links, model.Link{
				Source:   domain + ":service:" + svc,
				Target:   domain + ":product:" + prod,
				Label:    "offers",
				Inferred: true,
			})
		}
	}
	for _, tech := range top(e.Technologies, 3) {
		for _, svc := range top(e.Services, 2) {
			links = append(links, model.Link{
				Source:   domain + ":technology:" + tech,
				Target:   domain + ":service:" + svc,
				Label:    "powers",
				Inferred: true,
			})
		}
	}
	return links
}

func top(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
