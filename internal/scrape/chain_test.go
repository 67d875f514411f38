package scrape

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-insight/internal/model"
)

type fakeScraper struct {
	name     string
	supports bool
	page     *model.PageContent
	err      error
	calls    int
}

func (f *fakeScraper) Fetch(_ context.Context, url string) (*model.PageContent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	page := *f.page
	page.URL = url
	return &page, nil
}

func (f *fakeScraper) Name() string         { return f.name }
func (f *fakeScraper) Supports(string) bool { return f.supports }

func TestChainFirstSuccessWins(t *testing.T) {
	first := &fakeScraper{name: "local_http", supports: true, page: &model.PageContent{Source: "local_http"}}
	second := &fakeScraper{name: "jina", supports: true, page: &model.PageContent{Source: "jina"}}
	chain := NewChain(first, second)

	page, err := chain.Fetch(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Source)
	assert.Zero(t, second.calls, "fallback not consulted on success")
}

func TestChainFallsThroughOnError(t *testing.T) {
	first := &fakeScraper{name: "local_http", supports: true, err: eris.New("blocked (cloudflare)")}
	second := &fakeScraper{name: "jina", supports: true, page: &model.PageContent{Source: "jina"}}
	chain := NewChain(first, second)

	page, err := chain.Fetch(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "jina", page.Source)
	assert.Equal(t, 1, first.calls)
}

func TestChainSkipsUnsupported(t *testing.T) {
	skipped := &fakeScraper{name: "jina", supports: false, page: &model.PageContent{Source: "jina"}}
	fallback := &fakeScraper{name: "local_http", supports: true, page: &model.PageContent{Source: "local_http"}}
	chain := NewChain(skipped, fallback)

	page, err := chain.Fetch(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "local_http", page.Source)
	assert.Zero(t, skipped.calls)
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(
		&fakeScraper{name: "local_http", supports: true, err: eris.New("status 500")},
		&fakeScraper{name: "jina", supports: true, err: eris.New("unusable response")},
	)
	_, err := chain.Fetch(context.Background(), "https://a.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all scrapers failed")
}

func TestChainNoScraperAvailable(t *testing.T) {
	chain := NewChain(&fakeScraper{name: "jina", supports: false})
	_, err := chain.Fetch(context.Background(), "https://a.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scraper available")
}

func TestFetchAllSkipsFailures(t *testing.T) {
	flaky := &fakeScraper{name: "local_http", supports: true, err: eris.New("down")}
	chain := NewChain(flaky)
	pages := chain.FetchAll(context.Background(), []string{"https://a.example", "https://b.example"}, 2)
	assert.Empty(t, pages)

	ok := &fakeScraper{name: "local_http", supports: true, page: &model.PageContent{Source: "local_http"}}
	chain = NewChain(ok)
	pages = chain.FetchAll(context.Background(), []string{"https://a.example", "https://b.example"}, 2)
	assert.Len(t, pages, 2)
}
