// Package store persists analyses. Two backends implement the same
// interface: SQLite for single-binary deployments and Postgres for shared
// ones. The analysis result is written by exactly one terminal update.
package store

import (
	"context"

	"github.com/sells-group/site-insight/internal/model"
)

// Filter specifies criteria for listing analyses.
type Filter struct {
	Status  model.AnalysisStatus `json:"status,omitempty"`
	OwnerID string               `json:"owner_id,omitempty"`
	Limit   int                  `json:"limit,omitempty"`
	Offset  int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for analyses.
type Store interface {
	// CreateAnalysis inserts a new analysis in status "processing".
	CreateAnalysis(ctx context.Context, ownerID string, targets []string) (*model.Analysis, error)

	// CompleteAnalysis records the result and flips status to "completed"
	// in a single statement.
	CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error

	// FailAnalysis records the failure cause and flips status to "failed".
	FailAnalysis(ctx context.Context, id string, cause string) error

	// GetAnalysis returns the analysis, or (nil, nil) when it does not exist.
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)

	ListAnalyses(ctx context.Context, filter Filter) ([]model.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
