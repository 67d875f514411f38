package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-insight/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteCreateAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateAnalysis(ctx, "owner-1", []string{"https://a.example", "https://b.example"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	assert.Equal(t, model.AnalysisStatusProcessing, a.Status)

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.Targets)
	assert.Nil(t, got.Result)
}

func TestSQLiteGetMissingReturnsNilNil(t *testing.T) {
	s := newTestSQLite(t)
	got, err := s.GetAnalysis(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteCompleteAnalysis(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateAnalysis(ctx, "owner-1", []string{"https://a.example"})
	require.NoError(t, err)

	result := &model.AnalysisResult{
		Pages: []model.PageContent{{URL: "https://a.example", Title: "A"}},
		Graph: &model.KnowledgeGraph{
			Nodes: []model.Node{{ID: "a.example", Label: "a.example", Type: "domain"}},
		},
		TokenUsage:    model.TokenUsage{InputTokens: 1000, OutputTokens: 200},
		EstimatedCost: 0.01,
	}
	require.NoError(t, s.CompleteAnalysis(ctx, a.ID, result))

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.AnalysisStatusCompleted, got.Status)
	assert.Equal(t, "A", got.Result.Pages[0].Title)
	assert.Equal(t, 1000, got.Result.TokenUsage.InputTokens)
}

func TestSQLiteFailAnalysis(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateAnalysis(ctx, "owner-1", []string{"https://a.example"})
	require.NoError(t, err)
	require.NoError(t, s.FailAnalysis(ctx, a.ID, "acquisition failed: status 503"))

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusFailed, got.Status)
	assert.Equal(t, "acquisition failed: status 503", got.Error)
}

func TestSQLiteCompleteMissingAnalysis(t *testing.T) {
	s := newTestSQLite(t)
	err := s.CompleteAnalysis(context.Background(), "ghost", &model.AnalysisResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListAnalysesFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a1, err := s.CreateAnalysis(ctx, "owner-1", []string{"https://a.example"})
	require.NoError(t, err)
	_, err = s.CreateAnalysis(ctx, "owner-2", []string{"https://b.example"})
	require.NoError(t, err)
	require.NoError(t, s.CompleteAnalysis(ctx, a1.ID, &model.AnalysisResult{}))

	all, err := s.ListAnalyses(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListAnalyses(ctx, Filter{OwnerID: "owner-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a1.ID, mine[0].ID)

	done, err := s.ListAnalyses(ctx, Filter{Status: model.AnalysisStatusCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a1.ID, done[0].ID)
}

func TestSQLiteDeleteAnalysis(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateAnalysis(ctx, "owner-1", []string{"https://a.example"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteAnalysis(ctx, a.ID))

	got, err := s.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.DeleteAnalysis(ctx, a.ID)
	require.Error(t, err, "second delete reports not found")
}
