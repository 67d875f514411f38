package pipeline

import (
	"context"
	"sync"

	"github.com/sells-group/site-insight/internal/llm"
	"github.com/sells-group/site-insight/internal/model"
	"github.com/sells-group/site-insight/pkg/serpapi"
)

type stubGateway struct {
	mu      sync.Mutex
	calls   []llm.Request
	respond func(req llm.Request) (string, llm.Usage, error)
}

func (s *stubGateway) Complete(_ context.Context, req llm.Request) (string, llm.Usage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.respond(req)
}

func (s *stubGateway) callsForTier(tier llm.Tier) []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, c := range s.calls {
		if c.Tier == tier {
			out = append(out, c)
		}
	}
	return out
}

type stubAcquirer struct {
	page     *model.PageContent
	err      error
	extra    []model.PageContent
	fetchAll [][]string
}

func (s *stubAcquirer) Fetch(_ context.Context, targetURL string) (*model.PageContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	page := *s.page
	page.URL = targetURL
	return &page, nil
}

func (s *stubAcquirer) FetchAll(_ context.Context, urls []string, _ int) []model.PageContent {
	s.fetchAll = append(s.fetchAll, urls)
	return s.extra
}

type stubDiscoverer struct {
	pages []string
}

func (s *stubDiscoverer) PriorityPages(_ context.Context, _ string, limit int) []string {
	if len(s.pages) > limit {
		return s.pages[:limit]
	}
	return s.pages
}

type stubSerp struct {
	results map[string][]serpapi.OrganicResult
	err     error
}

func (s *stubSerp) Search(_ context.Context, query string) (*serpapi.SearchResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &serpapi.SearchResponse{OrganicResults: s.results[query]}, nil
}

type sinkEvent struct {
	Step    int
	Message string
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (r *recordingSink) Update(_ string, step int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{Step: step, Message: message})
}

func (r *recordingSink) steps() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.events))
	for i, e := range r.events {
		out[i] = e.Step
	}
	return out
}

func testPage() *model.PageContent {
	return &model.PageContent{
		URL:         "https://acme-corp.com",
		Title:       "Acme Corp | Industrial Automation",
		Description: "Acme builds industrial automation systems.",
		Headings: model.Headings{
			H1: []string{"Industrial Automation"},
			H2: []string{"Robotics", "Consulting"},
		},
		BodyText: "Acme Corp builds robotics and automation systems for manufacturers.",
		Source:   "local_http",
		Status:   model.AcquisitionSuccess,
	}
}

const entityJSON = `{"services": ["Robotics Integration", "Consulting"], "products": ["AcmeBot"], "technologies": ["PLC"], "audiences": ["Manufacturers"], "topics": ["industrial automation"]}`

const topicalJSON = `{"domain": "acme-corp.com", "business_description": "Industrial automation vendor.", "central_entity": "Acme Corp", "business_model": "B2B services", "key_topics": ["industrial automation", "robotics", "plc programming"], "target_audiences": ["manufacturers"], "search_intent": ["commercial"]}`
