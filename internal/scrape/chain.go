// Package scrape acquires page content for analysis targets. A chain of
// scrapers is tried in priority order: local HTTP first, then the Jina
// reader API for pages that block plain fetches.
package scrape

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-insight/internal/model"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in the order given.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Fetch tries each scraper in order for a single URL and returns the first
// successful result, or an error when every scraper fails.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*model.PageContent, error) {
	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		page, err := s.Fetch(ctx, targetURL)
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no scraper available for %s", targetURL)
}

// FetchAll fetches multiple URLs in parallel through the chain. Failed URLs
// are dropped; page order follows completion, not input.
func (c *Chain) FetchAll(ctx context.Context, urls []string, maxConcurrent int) []model.PageContent {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	var (
		mu    sync.Mutex
		pages []model.PageContent
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, u := range urls {
		g.Go(func() error {
			page, err := c.Fetch(gCtx, u)
			if err != nil {
				zap.L().Debug("scrape: chain failed for url",
					zap.String("url", u),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			pages = append(pages, *page)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pages
}
