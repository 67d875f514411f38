package model

// DomainEntities holds the categorized entities extracted for one domain.
// Lists are deduplicated case-sensitively and capped per category.
type DomainEntities struct {
	Services     []string `json:"services"`
	Products     []string `json:"products"`
	Technologies []string `json:"technologies"`
	Audiences    []string `json:"audiences"`
	Topics       []string `json:"topics"`
}

// Empty reports whether no entities were extracted in any category.
func (e DomainEntities) Empty() bool {
	return len(e.Services) == 0 && len(e.Products) == 0 &&
		len(e.Technologies) == 0 && len(e.Audiences) == 0 && len(e.Topics) == 0
}

// Node is one vertex in the knowledge graph. Domain nodes anchor a cluster;
// entity nodes share the cluster's color.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Size  int    `json:"size"`
}

// Link is one edge in the knowledge graph.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label"`
	Inferred bool   `json:"inferred"`
}

// KnowledgeGraph is the combined graph across all succeeded targets, one
// cluster per domain.
type KnowledgeGraph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}
