package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCleanObject(t *testing.T) {
	v, err := Extract(`{"name": "Acme", "count": 2}`)
	require.NoError(t, err)
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", obj["name"])
	assert.Equal(t, float64(2), obj["count"])
}

func TestExtractFencedBlock(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"services\": [\"seo\"]}\n```\nHope that helps!"
	v, err := Extract(raw)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, []any{"seo"}, obj["services"])
}

func TestExtractPlainFence(t *testing.T) {
	raw := "```\n[\"a\", \"b\"]\n```"
	arr, err := ExtractArray(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, arr)
}

func TestExtractUnterminatedFence(t *testing.T) {
	raw := "```json\n{\"topics\": [\"content\", \"links\"]}"
	v, err := Extract(raw)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Len(t, obj["topics"], 2)
}

func TestExtractSurroundedByProse(t *testing.T) {
	raw := `Sure! Based on the page content, the entities are {"services": ["consulting"], "products": []} as requested.`
	v, err := Extract(raw)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, []any{"consulting"}, obj["services"])
}

func TestExtractCommentDecorated(t *testing.T) {
	raw := `{
		// primary offerings
		"services": ["audit"], /* inline note */
		"products": ["toolkit"],
	}`
	v, err := Extract(raw)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, []any{"audit"}, obj["services"])
	assert.Equal(t, []any{"toolkit"}, obj["products"])
}

func TestExtractTrailingCommas(t *testing.T) {
	v, err := Extract(`{"a": [1, 2,], "b": {"c": 3,},}`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, []any{float64(1), float64(2)}, obj["a"])
}

func TestExtractNoJSONFailsFast(t *testing.T) {
	_, err := Extract("I could not produce a response for that request.")
	require.Error(t, err)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, xerr.Reason, "no JSON")
}

func TestExtractionErrorSnippetCapped(t *testing.T) {
	raw := "{" + string(make([]byte, 2000))
	_, err := Extract(raw)
	require.Error(t, err)
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.LessOrEqual(t, len(xerr.Snippet), snippetLimit)
}

func TestExtractIdempotentOnValidInput(t *testing.T) {
	raw := `{"key_topics": ["a", "b"], "nested": {"x": 1}}`
	first, err := Extract(raw)
	require.NoError(t, err)
	second, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractObjectAppliesShape(t *testing.T) {
	shape := Shape{
		"services": []any{},
		"products": []any{},
		"model":    "unknown",
	}
	obj, err := ExtractObject(`{"services": ["seo"], "extra": true, "model": null}`, shape)
	require.NoError(t, err)
	assert.Equal(t, []any{"seo"}, obj["services"])
	assert.Equal(t, []any{}, obj["products"], "missing key gets default")
	assert.Equal(t, "unknown", obj["model"], "null gets default")
	assert.NotContains(t, obj, "extra", "undeclared keys dropped")
}

func TestExtractObjectRejectsArray(t *testing.T) {
	_, err := ExtractObject(`[1, 2, 3]`, nil)
	require.Error(t, err)
}

func TestDecodeObject(t *testing.T) {
	type entities struct {
		Services []string `json:"services"`
		Products []string `json:"products"`
	}
	var got entities
	err := DecodeObject("```json\n{\"services\": [\"seo\", \"ppc\"]}\n```", &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"seo", "ppc"}, got.Services)
	assert.Empty(t, got.Products)
}
