package model

// AcquisitionStatus marks whether a page fetch succeeded.
type AcquisitionStatus string

const (
	AcquisitionSuccess AcquisitionStatus = "success"
	AcquisitionError   AcquisitionStatus = "error"
)

// PageContent is the acquired content for one URL. Populated once by the
// acquisition step and read-only afterward.
type PageContent struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Headings    Headings          `json:"headings"`
	BodyText    string            `json:"body_text"`
	Markdown    string            `json:"markdown,omitempty"`
	Links       []PageLink        `json:"links,omitempty"`
	Source      string            `json:"source"`
	StatusCode  int               `json:"status_code,omitempty"`
	Status      AcquisitionStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
}

// Headings groups heading text by level.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// PageLink is one anchor extracted from a page.
type PageLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}
