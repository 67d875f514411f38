package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/site-insight/internal/model"
)

const (
	maxBodyBytes = 512 * 1024
	maxBodyText  = 20000
	maxLinks     = 100
)

// LocalScraper fetches HTML via net/http and parses it with goquery. Free,
// no API calls; the chain falls through to Jina when a site blocks us.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) LocalOption {
	return func(l *LocalScraper) {
		l.client.Timeout = d
	}
}

// WithUserAgent overrides the default user agent.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalScraper) {
		l.userAgent = ua
	}
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; SiteInsightBot/1.0)",
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Fetch retrieves a URL and extracts title, meta description, headings,
// body text, and links.
func (l *LocalScraper) Fetch(ctx context.Context, targetURL string) (*model.PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, kind := detectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	page, err := parsePage(targetURL, body)
	if err != nil {
		return nil, err
	}
	page.StatusCode = resp.StatusCode
	page.Source = l.Name()
	page.Status = model.AcquisitionSuccess
	return page, nil
}

func parsePage(targetURL string, body []byte) (*model.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}

	page := &model.PageContent{
		URL:   targetURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Description = strings.TrimSpace(desc)
	}

	page.Headings = model.Headings{
		H1: headingTexts(doc, "h1"),
		H2: headingTexts(doc, "h2"),
		H3: headingTexts(doc, "h3"),
	}

	doc.Find("script, style, noscript, nav, footer").Remove()
	page.BodyText = collapseWhitespace(doc.Find("body").Text())
	if len(page.BodyText) > maxBodyText {
		page.BodyText = page.BodyText[:maxBodyText]
	}

	base, _ := url.Parse(targetURL)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return true
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		page.Links = append(page.Links, model.PageLink{
			Text: collapseWhitespace(s.Text()),
			URL:  href,
		})
		return len(page.Links) < maxLinks
	})

	return page, nil
}

func headingTexts(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := collapseWhitespace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
