// Package sitemap locates the high-signal pages of a site through its
// sitemap.xml. Discovery is strictly best-effort: a site without a usable
// sitemap just yields the base URL.
package sitemap

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Paths probed in order until one returns a parseable sitemap.
var commonLocations = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
}

// priorityKeywords mark pages that describe what a business does.
var priorityKeywords = []string{
	"/about",
	"/services",
	"/products",
	"/solutions",
	"/pricing",
	"/features",
	"/how-it-works",
	"/what-we-do",
}

// skipKeywords mark archive, feed, and asset URLs with no extraction value.
var skipKeywords = []string{
	"/tag/",
	"/category/",
	"/author/",
	"/page/",
	"/feed/",
	"?",
	"#",
	".pdf",
	".jpg",
	".png",
}

const (
	maxChildSitemaps = 5
	maxSitemapBytes  = 2 * 1024 * 1024
)

// Discoverer fetches and filters sitemaps.
type Discoverer struct {
	http *http.Client
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Discoverer) {
		d.http = hc
	}
}

// NewDiscoverer creates a Discoverer with a short per-request timeout.
func NewDiscoverer(opts ...Option) *Discoverer {
	d := &Discoverer{
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// PriorityPages returns up to limit page URLs worth scraping for extra
// context, always starting with the base URL itself. It never fails; any
// error along the way just shrinks the result.
func (d *Discoverer) PriorityPages(ctx context.Context, baseURL string, limit int) []string {
	base := strings.TrimRight(baseURL, "/")
	pages := []string{baseURL}
	if limit <= 1 {
		return pages
	}

	urls := d.discover(ctx, base)
	seen := map[string]bool{baseURL: true, base: true, base + "/": true}

	add := func(u string) bool {
		if seen[u] {
			return false
		}
		seen[u] = true
		pages = append(pages, u)
		return len(pages) >= limit
	}

	// Priority pages first, then whatever else the sitemap offers.
	for _, u := range urls {
		if isPriority(u) {
			if add(u) {
				return pages
			}
		}
	}
	for _, u := range urls {
		if add(u) {
			return pages
		}
	}
	return pages
}

// discover probes the common sitemap locations and returns filtered page
// URLs from the first one that parses.
func (d *Discoverer) discover(ctx context.Context, base string) []string {
	for _, loc := range commonLocations {
		urls := d.fetchSitemap(ctx, base+loc, true)
		if len(urls) > 0 {
			zap.L().Debug("sitemap: discovered pages",
				zap.String("sitemap", base+loc),
				zap.Int("pages", len(urls)),
			)
			return urls
		}
	}
	return nil
}

type sitemapDoc struct {
	XMLName  xml.Name `xml:""`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// fetchSitemap retrieves one sitemap document. Index documents recurse into
// the first few child sitemaps; recursion stops after one level.
func (d *Discoverer) fetchSitemap(ctx context.Context, sitemapURL string, recurse bool) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	if len(doc.Sitemaps) > 0 && recurse {
		var urls []string
		children := doc.Sitemaps
		if len(children) > maxChildSitemaps {
			children = children[:maxChildSitemaps]
		}
		for _, child := range children {
			urls = append(urls, d.fetchSitemap(ctx, strings.TrimSpace(child.Loc), false)...)
		}
		return urls
	}

	var urls []string
	for _, u := range doc.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc != "" && !shouldSkip(loc) {
			urls = append(urls, loc)
		}
	}
	return urls
}

func isPriority(u string) bool {
	lower := strings.ToLower(u)
	for _, kw := range priorityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func shouldSkip(u string) bool {
	lower := strings.ToLower(u)
	for _, kw := range skipKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
