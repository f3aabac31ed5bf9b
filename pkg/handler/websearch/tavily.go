// Package websearch answers questions with the Tavily web search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/handler"
)

const tavilyURL = "https://api.tavily.com/search"

// TavilySearcher implements handler.Searcher. Tavily's own AI summary is
// disabled; only raw page content is returned.
type TavilySearcher struct {
	apiKey      string
	endpoint    string
	httpClient  *http.Client
	maxResults  int
	searchDepth string
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a TavilySearcher.
type Option func(*TavilySearcher)

// WithAPIKey sets the API key (alternative to env var).
func WithAPIKey(key string) Option {
	return func(t *TavilySearcher) {
		t.apiKey = key
	}
}

// WithMaxResults sets the maximum search results to return.
func WithMaxResults(max int) Option {
	return func(t *TavilySearcher) {
		if max > 0 {
			t.maxResults = max
		}
	}
}

// WithSearchDepth sets the Tavily search depth ("basic" or "advanced").
func WithSearchDepth(depth string) Option {
	return func(t *TavilySearcher) {
		if depth != "" {
			t.searchDepth = depth
		}
	}
}

// WithEndpoint overrides the search URL.
func WithEndpoint(url string) Option {
	return func(t *TavilySearcher) {
		t.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *TavilySearcher) {
		t.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *TavilySearcher) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tavily-backed searcher.
func New(opts ...Option) *TavilySearcher {
	t := &TavilySearcher{
		apiKey:   os.Getenv("TAVILY_API_KEY"),
		endpoint: tavilyURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxResults:  5,
		searchDepth: "advanced",
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Available returns true if the API key is configured.
func (t *TavilySearcher) Available() bool {
	return t.apiKey != ""
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search queries Tavily. Transport failures and non-200 responses are
// returned as errors; an empty result set is a no_results outcome.
func (t *TavilySearcher) Search(ctx context.Context, question string) (*handler.SearchResult, error) {
	if !t.Available() {
		return nil, fmt.Errorf("tavily API key not configured")
	}

	body, err := json.Marshal(tavilyRequest{
		Query:         question,
		SearchDepth:   t.searchDepth,
		IncludeAnswer: false,
		MaxResults:    t.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &adapter.AdapterError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("tavily API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(tavilyResp.Results) == 0 {
		return &handler.SearchResult{
			Status:  handler.SearchNoResults,
			Query:   question,
			Message: "No results found.",
		}, nil
	}

	hits := make([]handler.SearchHit, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		hits = append(hits, handler.SearchHit{
			Title:   orDefault(r.Title, "Untitled"),
			URL:     orDefault(r.URL, "No URL"),
			Content: orDefault(r.Content, "No content"),
		})
	}
	t.logger.Debug("web search complete", "question", question, "results", len(hits))

	return &handler.SearchResult{
		Status:    handler.SearchSuccess,
		Query:     question,
		Results:   hits,
		Timestamp: t.now().Format("2006-01-02 15:04:05"),
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
