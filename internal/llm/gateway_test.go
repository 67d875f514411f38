package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-insight/pkg/anthropic"
	"github.com/sells-group/site-insight/pkg/groq"
)

type stubGroq struct {
	resp *groq.ChatCompletionResponse
	err  error
	last groq.ChatCompletionRequest
}

func (s *stubGroq) ChatCompletion(_ context.Context, req groq.ChatCompletionRequest) (*groq.ChatCompletionResponse, error) {
	s.last = req
	return s.resp, s.err
}

type stubAnthropic struct {
	resp *anthropic.MessageResponse
	err  error
	last anthropic.MessageRequest
}

func (s *stubAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.last = req
	return s.resp, s.err
}

func testConfig() Config {
	return Config{FastModel: "llama-3.3-70b-versatile", QualityModel: "claude-sonnet-4-5", DefaultMaxTokens: 1000}
}

func TestCompleteFastTier(t *testing.T) {
	fast := &stubGroq{resp: &groq.ChatCompletionResponse{
		Choices: []groq.Choice{{Message: groq.Message{Role: "assistant", Content: `{"services":[]}`}}},
		Usage:   groq.Usage{PromptTokens: 100, CompletionTokens: 20},
	}}
	g := New(testConfig(), fast, nil)

	text, usage, err := g.Complete(context.Background(), Request{
		Tier:     TierFast,
		System:   "extract entities",
		Prompt:   "page text",
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"services":[]}`, text)
	assert.Equal(t, Usage{InputTokens: 100, OutputTokens: 20}, usage)
	assert.Equal(t, "llama-3.3-70b-versatile", fast.last.Model)
	require.NotNil(t, fast.last.ResponseFormat)
	assert.Equal(t, "json_object", fast.last.ResponseFormat.Type)
	require.Len(t, fast.last.Messages, 2)
	assert.Equal(t, "system", fast.last.Messages[0].Role)
}

func TestCompleteQualityTier(t *testing.T) {
	quality := &stubAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "comparison"}},
		Usage:   anthropic.TokenUsage{InputTokens: 500, OutputTokens: 50},
	}}
	g := New(testConfig(), nil, quality)

	text, usage, err := g.Complete(context.Background(), Request{Tier: TierQuality, Prompt: "compare"})
	require.NoError(t, err)
	assert.Equal(t, "comparison", text)
	assert.Equal(t, Usage{InputTokens: 500, OutputTokens: 50}, usage)
	assert.Equal(t, "claude-sonnet-4-5", quality.last.Model)
	assert.Equal(t, int64(1000), quality.last.MaxTokens, "default max tokens applied")
}

func TestCompleteUnavailableBackend(t *testing.T) {
	g := New(testConfig(), nil, nil)

	_, _, err := g.Complete(context.Background(), Request{Tier: TierFast, Prompt: "x"})
	var unavail *UnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "groq", unavail.Backend)

	_, _, err = g.Complete(context.Background(), Request{Tier: TierQuality, Prompt: "x"})
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "anthropic", unavail.Backend)
}

func TestCompleteWrapsBackendError(t *testing.T) {
	cause := &groq.APIError{StatusCode: http.StatusBadRequest, Body: "bad request"}
	g := New(testConfig(), &stubGroq{err: cause}, nil)

	_, _, err := g.Complete(context.Background(), Request{Tier: TierFast, Prompt: "x"})
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "groq", berr.Backend)
	assert.ErrorIs(t, err, cause)
}

func TestCompleteUnknownTier(t *testing.T) {
	g := New(testConfig(), nil, nil)
	_, _, err := g.Complete(context.Background(), Request{Tier: "medium", Prompt: "x"})
	require.Error(t, err)
}

func TestCompleteEmptyChoices(t *testing.T) {
	g := New(testConfig(), &stubGroq{resp: &groq.ChatCompletionResponse{}}, nil)
	_, _, err := g.Complete(context.Background(), Request{Tier: TierFast, Prompt: "x"})
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&groq.APIError{StatusCode: 429, Body: "slow down"}))
	assert.True(t, IsRateLimited(&BackendError{Backend: "groq", Err: &groq.APIError{StatusCode: 429}}))
	assert.True(t, IsRateLimited(errors.New("anthropic: 529 overloaded_error")))
	assert.True(t, IsRateLimited(errors.New("Rate limit reached for model")))
	assert.False(t, IsRateLimited(nil))
	assert.False(t, IsRateLimited(&groq.APIError{StatusCode: 400, Body: "bad"}))
	assert.False(t, IsRateLimited(errors.New("invalid api key")))
}
