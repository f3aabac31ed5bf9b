// Package handler defines the capability services the workflow dispatches
// questions to. Concrete implementations live in subpackages.
package handler

import (
	"context"
	"strings"
)

// LookupResult is the outcome of a structured-data query.
type LookupResult struct {
	Query   string           `json:"query"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"results"`
}

// Lookup answers a question from the structured data store.
type Lookup interface {
	Lookup(ctx context.Context, question string) (*LookupResult, error)
}

// SearchStatus classifies a search outcome.
type SearchStatus string

const (
	SearchSuccess   SearchStatus = "success"
	SearchNoResults SearchStatus = "no_results"
	SearchError     SearchStatus = "error"
)

// SearchHit is one web search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResult is the outcome of a web search.
type SearchResult struct {
	Status    SearchStatus `json:"status"`
	Query     string       `json:"query,omitempty"`
	Results   []SearchHit  `json:"results,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Searcher answers a question from the web.
type Searcher interface {
	Search(ctx context.Context, question string) (*SearchResult, error)
}

// ChartInfo describes the chart chosen for a data set.
type ChartInfo struct {
	ChartType   string `json:"chart_type"`
	XColumn     string `json:"x_column"`
	YColumn     string `json:"y_column"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// VisualizationResult is the outcome of a chart request. Success is false when
// the data could not be charted; Message then explains why.
type VisualizationResult struct {
	Success   bool             `json:"success"`
	Query     string           `json:"query,omitempty"`
	Data      []map[string]any `json:"data,omitempty"`
	ChartInfo *ChartInfo       `json:"chart_info,omitempty"`
	Path      string           `json:"visualization_path,omitempty"`
	URL       string           `json:"visualization_url,omitempty"`
	Base64    string           `json:"visualization_base64,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Visualizer turns a question into a chart artifact.
type Visualizer interface {
	Visualize(ctx context.Context, question string) (*VisualizationResult, error)
}

// Reply is a conversational response. Type is one of greeting, help,
// conversation or error.
type Reply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Conversation produces free-form replies.
type Conversation interface {
	Respond(ctx context.Context, message string) (*Reply, error)
}

// StripCodeFences removes markdown code fences (optionally tagged with lang)
// from model output.
func StripCodeFences(content, lang string) string {
	if lang != "" {
		content = strings.ReplaceAll(content, "```"+lang, "")
	}
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}
