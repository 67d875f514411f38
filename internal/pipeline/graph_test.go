package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
)

func TestCleanEntitiesDedupesAndCaps(t *testing.T) {
	in := model.DomainEntities{
		Services: []string{
			"Web Design", "Web Design", "web design", " SEO ", "",
			"A", "B", "C", "D", "E", "F", "G",
		},
		Topics: []string{"one", "two", "three", "four", "five", "six", "seven"},
	}
	out := cleanEntities(in)

	assert.Len(t, out.Services, maxServices)
	// Dedupe is case-sensitive: "Web Design" and "web design" both survive.
	assert.Equal(t, []string{"Web Design", "web design", "SEO", "A", "B", "C", "D", "E"}, out.Services)
	assert.Len(t, out.Topics, maxTopics)
	assert.Nil(t, out.Products)
}

func TestCleanEntitiesTruncatesLabels(t *testing.T) {
	long := strings.Repeat("x", 100)
	out := cleanEntities(model.DomainEntities{Services: []string{long}})
	require.Len(t, out.Services, 1)
	assert.Len(t, out.Services[0], maxLabelRunes)
}

func TestExtractEntitiesNormalizesModelOutput(t *testing.T) {
	// Missing categories default empty and non-string noise is dropped.
	gw := &stubGateway{respond: func(llm.Request) (string, llm.Usage, error) {
		return `{"services": ["SEO", 7, "Consulting"], "products": null, "extra": "ignored"}`, llm.Usage{}, nil
	}}
	p := New(testConfig(), gw, nil, nil, nil, nil, nil)

	entities := p.extractEntities(context.Background(), *testPage(), &usageMeter{})

	assert.Equal(t, []string{"SEO", "Consulting"}, entities.Services)
	assert.Nil(t, entities.Products)
	assert.Nil(t, entities.Topics)
	require.Len(t, gw.calls, 1, "clean decode needs no simplified retry")
}

func TestTruncateLabelRuneSafe(t *testing.T) {
	long := strings.Repeat("é", 50)
	got := truncateLabel(long)
	assert.Equal(t, strings.Repeat("é", maxLabelRunes), got)
}

func TestBuildKnowledgeGraphSingleDomain(t *testing.T) {
	graph := BuildKnowledgeGraph(map[string]model.DomainEntities{
		"acme.com": {
			Services:     []string{"Robotics", "Consulting"},
			Products:     []string{"AcmeBot"},
			Technologies: []string{"PLC"},
		},
	})

	// 1 hub + 4 entities
	require.Len(t, graph.Nodes, 5)
	hub := graph.Nodes[0]
	assert.Equal(t, "acme.com", hub.ID)
	assert.Equal(t, "domain", hub.Type)
	assert.Equal(t, domainNodeSize, hub.Size)

	for _, n := range graph.Nodes[1:] {
		assert.Equal(t, entityNodeSize, n.Size)
		assert.Equal(t, hub.Color, n.Color, "cluster shares the hub color")
	}

	// 4 category links + 2 offers (2 services x 1 product) + 2 powers (1 tech x 2 services)
	var category, inferred int
	for _, l := range graph.Links {
		if l.Inferred {
			inferred++
		} else {
			category++
			assert.Equal(t, "acme.com", l.Source)
		}
	}
	assert.Equal(t, 4, category)
	assert.Equal(t, 4, inferred)
}

func TestBuildKnowledgeGraphInferredLinkLimits(t *testing.T) {
	graph := BuildKnowledgeGraph(map[string]model.DomainEntities{
		"acme.com": {
			Services:     []string{"s1", "s2", "s3", "s4", "s5"},
			Products:     []string{"p1", "p2", "p3"},
			Technologies: []string{"t1", "t2", "t3", "t4"},
		},
	})

	var offers, powers int
	for _, l := range graph.Links {
		if !l.Inferred {
			continue
		}
		switch l.Label {
		case "offers":
			offers++
		case "powers":
			powers++
		}
	}
	assert.Equal(t, 6, offers, "top 3 services x top 2 products")
	assert.Equal(t, 6, powers, "top 3 technologies x top 2 services")
}

func TestBuildKnowledgeGraphPaletteRotation(t *testing.T) {
	entities := map[string]model.DomainEntities{
		"a.com": {Topics: []string{"x"}},
		"b.com": {Topics: []string{"y"}},
	}
	graph := BuildKnowledgeGraph(entities)

	colors := map[string]string{}
	for _, n := range graph.Nodes {
		if n.Type == "domain" {
			colors[n.ID] = n.Color
		}
	}
	require.Len(t, colors, 2)
	assert.NotEqual(t, colors["a.com"], colors["b.com"])
	// Domains are ordered, so the graph is deterministic across runs.
	assert.Equal(t, palette[0], colors["a.com"])
	assert.Equal(t, palette[1], colors["b.com"])
}

func TestBuildKnowledgeGraphEmptyEntities(t *testing.T) {
	graph := BuildKnowledgeGraph(map[string]model.DomainEntities{"a.com": {}})
	require.Len(t, graph.Nodes, 1)
	assert.Empty(t, graph.Links)
}
