package model

import "time"

// AnalysisStatus represents the lifecycle state of an analysis.
type AnalysisStatus string

const (
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Analysis is the persisted aggregate for one submitted batch of target URLs.
// It is created with status "processing" and transitions exactly once to a
// terminal status when the orchestrator run that owns it finishes.
type Analysis struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Targets   []string        `json:"targets"`
	Status    AnalysisStatus  `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisResult holds everything produced by a completed analysis run.
// Failed targets are recorded but contribute nothing to the graph, maps,
// or comparison.
type AnalysisResult struct {
	Pages         []PageContent   `json:"pages"`
	Graph         *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	TopicalMaps   []TopicalMap    `json:"topical_maps,omitempty"`
	Comparison    *Comparison     `json:"comparison,omitempty"`
	FailedTargets []TargetFailure `json:"failed_targets,omitempty"`
	TokenUsage    TokenUsage      `json:"token_usage"`
	EstimatedCost float64         `json:"estimated_cost_usd"`
}

// TargetFailure records why one target was excluded from the aggregate.
type TargetFailure struct {
	URL    string `json:"url"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// TargetResult is the per-target output assembled by the pipeline's
// finalizing step. Immutable once returned.
type TargetResult struct {
	URL        string         `json:"url"`
	Page       PageContent    `json:"page"`
	Entities   DomainEntities `json:"entities"`
	TopicalMap TopicalMap     `json:"topical_map"`
	Rankings   []KeywordRank  `json:"rankings,omitempty"`
	Usage      TokenUsage     `json:"token_usage"`
	Cost       float64        `json:"estimated_cost_usd"`
}

// KeywordRank is one SERP position lookup from the enrichment stage.
type KeywordRank struct {
	Keyword  string `json:"keyword"`
	Position int    `json:"position"`
	URL      string `json:"url"`
}

// TokenUsage tracks LLM token consumption across pipeline steps.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
