package scrape

import (
	"context"

	"github.com/sells-group/site-insight/internal/model"
)

// Scraper fetches a single URL and returns its structured content.
type Scraper interface {
	Fetch(ctx context.Context, url string) (*model.PageContent, error)
	Name() string
	Supports(url string) bool
}
