package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/site-insight/internal/model"
)

const (
	maxBodyContext        = 6000
	maxSimplifiedContext  = 1500
	maxSupplementHeadings = 10
)

const entitySystemPrompt = `You are an SEO and business analyst. You extract structured facts from website content. Respond with a single JSON object and nothing else.`

const topicalSystemPrompt = `You are a senior SEO strategist. You build topical maps and content strategies from website content. Respond with a single JSON object and nothing else.`

func entityPrompt(page model.PageContent) string {
	var b strings.Builder
	b.WriteString("Extract the key entities from this website content.\n\n")
	b.WriteString(contentContext(page, maxBodyContext))
	b.WriteString(`
Return a JSON object with exactly these keys, each a list of short strings:
{
  "services": [],
  "products": [],
  "technologies": [],
  "audiences": [],
  "topics": []
}
List only entities actually evidenced by the content. Keep each entry under 6 words.`)
	return b.String()
}

// entitySimplifiedPrompt is the one-shot fallback after a failed extraction:
// less context, fewer instructions, same output keys.
func entitySimplifiedPrompt(page model.PageContent) string {
	var b strings.Builder
	b.WriteString("Website: ")
	b.WriteString(page.URL)
	b.WriteString("\nTitle: ")
	b.WriteString(page.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(page.Description)
	b.WriteString("\nHeadings: ")
	b.WriteString(strings.Join(page.Headings.H1, "; "))
	if len(page.Headings.H2) > 0 {
		b.WriteString("; ")
		b.WriteString(strings.Join(page.Headings.H2, "; "))
	}
	b.WriteString(`

Return JSON: {"services": [], "products": [], "technologies": [], "audiences": [], "topics": []}`)
	return b.String()
}

func topicalMapPrompt(page model.PageContent, supplementary []model.PageContent) string {
	var b strings.Builder
	b.WriteString("Build a complete topical map for this business based on its website content.\n\n")
	b.WriteString(contentContext(page, maxBodyContext))

	if len(supplementary) > 0 {
		b.WriteString("\nAdditional pages from the same site:\n")
		for _, p := range supplementary {
			b.WriteString("- ")
			b.WriteString(p.URL)
			if p.Title != "" {
				b.WriteString(" (")
				b.WriteString(p.Title)
				b.WriteString(")")
			}
			b.WriteString("\n")
			if headings := supplementHeadings(p); headings != "" {
				b.WriteString("  headings: ")
				b.WriteString(headings)
				b.WriteString("\n")
			}
		}
	}

	b.WriteString(`
Return a JSON object with these keys:
{
  "domain": "", "business_description": "", "central_entity": "", "business_model": "",
  "search_intent": [], "target_audiences": [], "conversion_methods": [], "key_topics": [],
  "semantic_relationships": {"core_services": [], "service_variations": [], "problem_statements": [], "solution_phrases": [], "industry_terms": [], "process_steps": [], "tools": [], "outcomes": [], "comparisons": [], "locations": [], "qualifiers": [], "price_related": [], "trust_signals": [], "action_phrases": [], "question_formulations": []},
  "audience_segments": [{"name": "", "description": "", "pain_points": [], "search_queries": [], "content_needs": []}],
  "content_strategy": {"pillar_pages": [], "cluster_topics": [], "content_formats": [], "publishing_cadence": ""},
  "query_templates": {"informational": [], "commercial": [], "transactional": [], "navigational": [], "comparison": [], "local_intent": [], "problem_solving": [], "how_to": [], "pricing": []},
  "competitive_analysis": {"market_position": "", "differentiators": [], "content_gaps": [], "opportunity_areas": []},
  "content_articles": [{"title": "", "intent": "", "target_topic": "", "keywords": [], "outline": []}],
  "seo_optimization": {"title_templates": [], "meta_description_tips": [], "internal_linking_notes": [], "schema_suggestions": []},
  "competitive_advantages": [], "technology_stack": []
}
Limits: search_intent max 5, target_audiences max 10, conversion_methods max 15, key_topics max 15, competitive_advantages max 10, technology_stack max 10.`)
	return b.String()
}

// topicalSimplifiedPrompt asks only for the core business profile, built from
// page metadata rather than full body text.
func topicalSimplifiedPrompt(page model.PageContent) string {
	return fmt.Sprintf(`Summarize this business for SEO planning.

Website: %s
Title: %s
Description: %s
Headings: %s

Return JSON: {"business_description": "", "business_model": "", "central_entity": "", "target_audiences": [], "key_topics": [], "search_intent": []}`,
		page.URL, page.Title, page.Description,
		strings.Join(append(append([]string{}, page.Headings.H1...), page.Headings.H2...), "; "))
}

func contentContext(page model.PageContent, maxBody int) string {
	var b strings.Builder
	b.WriteString("URL: ")
	b.WriteString(page.URL)
	b.WriteString("\nTitle: ")
	b.WriteString(page.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(page.Description)
	if len(page.Headings.H1) > 0 {
		b.WriteString("\nH1: ")
		b.WriteString(strings.Join(page.Headings.H1, " | "))
	}
	if len(page.Headings.H2) > 0 {
		b.WriteString("\nH2: ")
		b.WriteString(strings.Join(page.Headings.H2, " | "))
	}
	if len(page.Headings.H3) > 0 {
		b.WriteString("\nH3: ")
		b.WriteString(strings.Join(page.Headings.H3, " | "))
	}
	body := page.BodyText
	if page.Markdown != "" && len(page.Markdown) > len(body) {
		body = page.Markdown
	}
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	if body != "" {
		b.WriteString("\n\nContent:\n")
		b.WriteString(body)
	}
	b.WriteString("\n")
	return b.String()
}

func supplementHeadings(p model.PageContent) string {
	headings := append(append([]string{}, p.Headings.H1...), p.Headings.H2...)
	if len(headings) > maxSupplementHeadings {
		headings = headings[:maxSupplementHeadings]
	}
	return strings.Join(headings, "; ")
}
