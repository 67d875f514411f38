package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/site-insight/internal/model"
)

func TestNormalizeTopicalMapFillsIdentity(t *testing.T) {
	page := model.PageContent{
		URL:         "https://www.acme-corp.com/",
		Description: "Acme builds industrial automation systems.",
	}
	tm := normalizeTopicalMap(model.TopicalMap{}, page)

	assert.Equal(t, "acme-corp.com", tm.Domain)
	assert.Equal(t, "Acme Corp", tm.CentralEntity)
	assert.Equal(t, page.Description, tm.BusinessDescription)
}

func TestNormalizeTopicalMapKeepsModelValues(t *testing.T) {
	tm := normalizeTopicalMap(model.TopicalMap{
		Domain:              "other.io",
		CentralEntity:       "Other Labs",
		BusinessDescription: "desc",
	}, model.PageContent{URL: "https://acme.com"})

	assert.Equal(t, "other.io", tm.Domain)
	assert.Equal(t, "Other Labs", tm.CentralEntity)
	assert.Equal(t, "desc", tm.BusinessDescription)
}

func TestNormalizeTopicalMapAppliesLimits(t *testing.T) {
	many := make([]string, 30)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}
	tm := normalizeTopicalMap(model.TopicalMap{
		BusinessDescription:   strings.Repeat("d", 2000),
		SearchIntent:          many,
		TargetAudiences:       many,
		ConversionMethods:     many,
		KeyTopics:             many,
		CompetitiveAdvantages: many,
		TechnologyStack:       many,
	}, model.PageContent{URL: "https://acme.com"})

	assert.Len(t, tm.BusinessDescription, maxDescriptionChars)
	assert.Len(t, tm.SearchIntent, maxSearchIntent)
	assert.Len(t, tm.TargetAudiences, maxTargetAudiences)
	assert.Len(t, tm.ConversionMethods, maxConversionMethods)
	assert.Len(t, tm.KeyTopics, maxKeyTopics)
	assert.Len(t, tm.CompetitiveAdvantages, maxAdvantages)
	assert.Len(t, tm.TechnologyStack, maxTechStack)
}

func TestCapListDropsBlanks(t *testing.T) {
	out := capList([]string{" a ", "", "b", "   "}, 10)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "acme.com", domainOf("https://www.acme.com/about"))
	assert.Equal(t, "acme.co.uk", domainOf("http://acme.co.uk"))
	assert.Equal(t, "acme.com", domainOf("https://acme.com:8080/x"))
}

func TestCentralEntityFromDomain(t *testing.T) {
	assert.Equal(t, "Acme Corp", centralEntityFromDomain("acme-corp.com"))
	assert.Equal(t, "Widgets", centralEntityFromDomain("widgets.io"))
}
