// Package llm routes prompt completions to one of two model backends: a fast
// tier for bulk extraction and a quality tier for synthesis. Tier choice is
// explicit per call; there is no automatic fallback and no retry here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sells-group/site-insight/pkg/anthropic"
	"github.com/sells-group/site-insight/pkg/groq"
)

// Tier selects which backend serves a request.
type Tier string

const (
	// TierFast is the high-throughput extraction backend (Groq).
	TierFast Tier = "fast"
	// TierQuality is the stronger synthesis backend (Anthropic).
	TierQuality Tier = "quality"
)

// Request is a single completion request.
type Request struct {
	Tier        Tier
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
	// JSONMode asks the backend for structured output where supported.
	JSONMode bool
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Gateway completes prompts against a selected tier.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, Usage, error)
}

// UnavailableError means the selected tier has no credential configured.
type UnavailableError struct {
	Backend string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("llm: backend %s unavailable: no credential configured", e.Backend)
}

// BackendError wraps a transport or API failure from a backend.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm: backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limit or overload rejection,
// the only error class worth retrying at LLM call sites.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *groq.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"429", "rate limit", "too many requests", "overloaded"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Config holds per-tier model selection.
type Config struct {
	FastModel    string
	QualityModel string
	// DefaultMaxTokens applies when a request leaves MaxTokens zero.
	DefaultMaxTokens int
}

type gateway struct {
	cfg     Config
	fast    groq.Client
	quality anthropic.Client
}

// New builds a Gateway over the given backend clients. Either client may be
// nil, in which case requests for that tier fail with UnavailableError.
func New(cfg Config, fast groq.Client, quality anthropic.Client) Gateway {
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 4096
	}
	return &gateway{cfg: cfg, fast: fast, quality: quality}
}

func (g *gateway) Complete(ctx context.Context, req Request) (string, Usage, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.DefaultMaxTokens
	}

	switch req.Tier {
	case TierFast:
		return g.completeFast(ctx, req, maxTokens)
	case TierQuality:
		return g.completeQuality(ctx, req, maxTokens)
	default:
		return "", Usage{}, fmt.Errorf("llm: unknown tier %q", req.Tier)
	}
}

func (g *gateway) completeFast(ctx context.Context, req Request, maxTokens int) (string, Usage, error) {
	if g.fast == nil {
		return "", Usage{}, &UnavailableError{Backend: "groq"}
	}

	messages := make([]groq.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, groq.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, groq.Message{Role: "user", Content: req.Prompt})

	creq := groq.ChatCompletionRequest{
		Model:       g.cfg.FastModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   &maxTokens,
	}
	if req.JSONMode {
		creq.ResponseFormat = &groq.ResponseFormat{Type: "json_object"}
	}

	resp, err := g.fast.ChatCompletion(ctx, creq)
	if err != nil {
		return "", Usage{}, &BackendError{Backend: "groq", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, &BackendError{Backend: "groq", Err: errors.New("empty choices")}
	}
	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (g *gateway) completeQuality(ctx context.Context, req Request, maxTokens int) (string, Usage, error) {
	if g.quality == nil {
		return "", Usage{}, &UnavailableError{Backend: "anthropic"}
	}

	resp, err := g.quality.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.cfg.QualityModel,
		MaxTokens:   int64(maxTokens),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", Usage{}, &BackendError{Backend: "anthropic", Err: err}
	}
	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return resp.Text(), usage, nil
}
