package model

// TopicalMap is the content-strategy map extracted for one domain. Field
// limits are enforced by the extraction shape, not by these types.
type TopicalMap struct {
	Domain                string                `json:"domain"`
	BusinessDescription   string                `json:"business_description"`
	CentralEntity         string                `json:"central_entity"`
	BusinessModel         string                `json:"business_model"`
	SearchIntent          []string              `json:"search_intent"`
	TargetAudiences       []string              `json:"target_audiences"`
	ConversionMethods     []string              `json:"conversion_methods"`
	KeyTopics             []string              `json:"key_topics"`
	SemanticRelationships SemanticRelationships `json:"semantic_relationships"`
	AudienceSegments      []AudienceSegment     `json:"audience_segments,omitempty"`
	ContentStrategy       ContentStrategy       `json:"content_strategy"`
	QueryTemplates        QueryTemplates        `json:"query_templates"`
	CompetitiveAnalysis   CompetitiveAnalysis   `json:"competitive_analysis"`
	ContentArticles       []ContentArticle      `json:"content_articles,omitempty"`
	SEOOptimization       SEOOptimization       `json:"seo_optimization"`
	CompetitiveAdvantages []string              `json:"competitive_advantages,omitempty"`
	TechnologyStack       []string              `json:"technology_stack,omitempty"`
}

// SemanticRelationships groups related phrases by relationship category.
type SemanticRelationships struct {
	CoreServices        []string `json:"core_services,omitempty"`
	ServiceVariations   []string `json:"service_variations,omitempty"`
	ProblemStatements   []string `json:"problem_statements,omitempty"`
	SolutionPhrases     []string `json:"solution_phrases,omitempty"`
	IndustryTerms       []string `json:"industry_terms,omitempty"`
	ProcessSteps        []string `json:"process_steps,omitempty"`
	Tools               []string `json:"tools,omitempty"`
	Outcomes            []string `json:"outcomes,omitempty"`
	Comparisons         []string `json:"comparisons,omitempty"`
	Locations           []string `json:"locations,omitempty"`
	Qualifiers          []string `json:"qualifiers,omitempty"`
	PriceRelated        []string `json:"price_related,omitempty"`
	TrustSignals        []string `json:"trust_signals,omitempty"`
	ActionPhrases       []string `json:"action_phrases,omitempty"`
	QuestionFormulations []string `json:"question_formulations,omitempty"`
}

// AudienceSegment describes one target audience and how to reach it.
type AudienceSegment struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PainPoints    []string `json:"pain_points,omitempty"`
	SearchQueries []string `json:"search_queries,omitempty"`
	ContentNeeds  []string `json:"content_needs,omitempty"`
}

// ContentStrategy summarizes the recommended content approach.
type ContentStrategy struct {
	PillarPages    []string `json:"pillar_pages,omitempty"`
	ClusterTopics  []string `json:"cluster_topics,omitempty"`
	ContentFormats []string `json:"content_formats,omitempty"`
	PublishingCadence string `json:"publishing_cadence,omitempty"`
}

// QueryTemplates holds query patterns grouped by search-intent category.
type QueryTemplates struct {
	Informational  []string `json:"informational,omitempty"`
	Commercial     []string `json:"commercial,omitempty"`
	Transactional  []string `json:"transactional,omitempty"`
	Navigational   []string `json:"navigational,omitempty"`
	Comparison     []string `json:"comparison,omitempty"`
	LocalIntent    []string `json:"local_intent,omitempty"`
	ProblemSolving []string `json:"problem_solving,omitempty"`
	HowTo          []string `json:"how_to,omitempty"`
	Pricing        []string `json:"pricing,omitempty"`
}

// CompetitiveAnalysis captures the competitive framing for the domain.
type CompetitiveAnalysis struct {
	MarketPosition   string   `json:"market_position,omitempty"`
	Differentiators  []string `json:"differentiators,omitempty"`
	ContentGaps      []string `json:"content_gaps,omitempty"`
	OpportunityAreas []string `json:"opportunity_areas,omitempty"`
}

// ContentArticle is one recommended article with targeting metadata.
type ContentArticle struct {
	Title       string   `json:"title"`
	Intent      string   `json:"intent,omitempty"`
	TargetTopic string   `json:"target_topic,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Outline     []string `json:"outline,omitempty"`
}

// SEOOptimization holds page-level optimization recommendations.
type SEOOptimization struct {
	TitleTemplates       []string `json:"title_templates,omitempty"`
	MetaDescriptionTips  []string `json:"meta_description_tips,omitempty"`
	InternalLinkingNotes []string `json:"internal_linking_notes,omitempty"`
	SchemaSuggestions    []string `json:"schema_suggestions,omitempty"`
}
