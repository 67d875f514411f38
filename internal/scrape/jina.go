package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/pkg/jina"
)

// breaker tracks consecutive failures so a flaky reader upstream is skipped
// instead of stalling every page fetch.
type breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int
	window      time.Duration
	cooldown    time.Duration
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.openUntil)
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		zap.L().Warn("scrape: jina breaker opened",
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// JinaScraper wraps a Jina Reader client as a Scraper. It supplies markdown
// content for pages the local scraper cannot handle.
type JinaScraper struct {
	client  jina.Client
	breaker *breaker
}

// JinaOption configures a JinaScraper.
type JinaOption func(*JinaScraper)

// WithBreaker overrides the default breaker thresholds. Zero values keep the
// defaults.
func WithBreaker(threshold int, cooldown time.Duration) JinaOption {
	return func(j *JinaScraper) {
		if threshold > 0 {
			j.breaker.threshold = threshold
		}
		if cooldown > 0 {
			j.breaker.cooldown = cooldown
		}
	}
}

// NewJinaScraper creates a JinaScraper. By default three consecutive failures
// within 30s open the breaker for 60s, skipping straight to the next scraper.
func NewJinaScraper(client jina.Client, opts ...JinaOption) *JinaScraper {
	j := &JinaScraper{
		client: client,
		breaker: &breaker{
			threshold: 3,
			window:    30 * time.Second,
			cooldown:  60 * time.Second,
		},
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

func (j *JinaScraper) Name() string { return "jina" }

func (j *JinaScraper) Supports(_ string) bool {
	return !j.breaker.isOpen()
}

func (j *JinaScraper) Fetch(ctx context.Context, targetURL string) (*model.PageContent, error) {
	if j.breaker.isOpen() {
		return nil, eris.New("jina: breaker open")
	}

	resp, err := j.client.Read(ctx, targetURL)
	if err != nil {
		j.breaker.recordFailure()
		return nil, err
	}
	if unusable(resp) {
		j.breaker.recordFailure()
		return nil, eris.New("jina: unusable response")
	}
	j.breaker.recordSuccess()

	return &model.PageContent{
		URL:         targetURL,
		Title:       resp.Data.Title,
		Description: resp.Data.Description,
		BodyText:    markdownText(resp.Data.Content),
		Markdown:    resp.Data.Content,
		Source:      j.Name(),
		StatusCode:  resp.Code,
		Status:      model.AcquisitionSuccess,
	}, nil
}

// unusable reports whether a Jina response is blocked or too thin to feed
// the extractor.
func unusable(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	lower := strings.ToLower(content)
	for _, sig := range []string{
		"checking your browser",
		"enable javascript",
		"access denied",
		"just a moment",
		"attention required",
	} {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}

// markdownText flattens markdown into plain text good enough for prompts:
// headings and link syntax stripped, whitespace collapsed per line.
func markdownText(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimLeft(line, "#> ")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "`", "")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	text := strings.Join(out, "\n")
	if len(text) > maxBodyText {
		text = text[:maxBodyText]
	}
	return text
}
