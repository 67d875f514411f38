package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairTruncatedObject(t *testing.T) {
	v, err := Extract(`{"a": 1, "b": [1,2,`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, float64(1), obj["a"])
	assert.Equal(t, []any{float64(1), float64(2)}, obj["b"])
}

func TestRepairTruncatedNestedObject(t *testing.T) {
	v, err := Extract(`{"profile": {"name": "Acme", "topics": ["seo", "content"`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	profile := obj["profile"].(map[string]any)
	assert.Equal(t, "Acme", profile["name"])
	assert.Equal(t, []any{"seo", "content"}, profile["topics"])
}

func TestRepairTruncatedMidString(t *testing.T) {
	v, err := Extract(`{"services": ["audit", "consul`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, []any{"audit"}, obj["services"], "partial string dropped")
}

func TestRepairTruncatedAfterBoolean(t *testing.T) {
	v, err := Extract(`{"items": ["a"], "active": true`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, true, obj["active"])
}

func TestPartialArrayRecovery(t *testing.T) {
	arr, err := ExtractArray(`[{"x":1},{"x":2},{"x":3`)
	require.NoError(t, err)
	require.Len(t, arr, 2, "the truncated trailing object is dropped")
	first := arr[0].(map[string]any)
	assert.Equal(t, float64(1), first["x"])
}

func TestPartialArrayWithEscapedQuotes(t *testing.T) {
	arr, err := ExtractArray(`[{"q":"say \"hi\""},{"q":"broken`)
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, `say "hi"`, arr[0].(map[string]any)["q"])
}

func TestCleanupStripsComments(t *testing.T) {
	got := cleanup(`{
	// leading
	"url": "https://example.com/path", /* note */
	}`)
	assert.NotContains(t, got, "leading")
	assert.NotContains(t, got, "note")
	assert.Contains(t, got, "https://example.com/path", "slashes inside strings survive")
}

func TestCleanupTrimsSurroundingProse(t *testing.T) {
	got := cleanup(`The answer is: {"a": 1} done.`)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestCleanupKeepsTailOfUnbalancedDocument(t *testing.T) {
	// An interior close bracket is not the end of the document; trimming
	// there would hide the tail from the repair pass.
	got := cleanup(`{"items": ["a"], "active": true`)
	assert.Equal(t, `{"items": ["a"], "active": true`, got)
}

func TestCleanupTrimsAtMatchingClose(t *testing.T) {
	got := cleanup(`{"a": {"b": 1}} trailing {"noise": true}`)
	assert.Equal(t, `{"a": {"b": 1}}`, got)
}

func TestRepairGivesUpOnHopelessInput(t *testing.T) {
	_, ok := repairTruncated(`{"a": `)
	assert.False(t, ok)
}
