package model

// Comparison is the cross-site comparison produced when at least two targets
// succeed. Either AI-generated or the deterministic topic-overlap fallback;
// Method records which.
type Comparison struct {
	Method             string              `json:"method"`
	BusinessModels     map[string]string   `json:"business_models,omitempty"`
	ServiceOverlap     []string            `json:"service_overlap,omitempty"`
	UniqueServices     map[string][]string `json:"unique_services,omitempty"`
	AudienceComparison map[string][]string `json:"audience_comparison,omitempty"`
	TechnologyStack    map[string][]string `json:"technology_stack,omitempty"`
	GeographicCoverage map[string]string   `json:"geographic_coverage,omitempty"`
	SimilarityMatrix   SimilarityMatrix    `json:"similarity_matrix"`
}

// Comparison methods.
const (
	ComparisonMethodAI       = "ai"
	ComparisonMethodFallback = "topic_overlap"
)

// SimilarityMatrix is a square matrix of pairwise similarity scores keyed by
// domain order. Scores are rounded to two decimals; the diagonal is 1.0.
type SimilarityMatrix struct {
	Domains []string    `json:"domains"`
	Scores  [][]float64 `json:"scores"`
}
