package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/zen-systems/finquery/pkg/config"
	"github.com/zen-systems/finquery/pkg/handler"
)

// Step is one entry of the ordered handler chain. Run is nil when the handler
// is not configured; a selected step without Run is skipped.
type Step struct {
	Name  string
	Retry bool
	Run   func(ctx context.Context, question string) (Result, error)
}

// Handlers holds the concrete handler services. Any of them may be nil.
type Handlers struct {
	Conversation handler.Conversation
	Lookup       handler.Lookup
	Search       handler.Searcher
	Visualizer   handler.Visualizer
}

// Steps returns the fixed execution order: conversation, lookup, search,
// visualization. Conversation retries internally, so it is not wrapped.
func (h Handlers) Steps() []Step {
	steps := []Step{
		{Name: config.HandlerConversation},
		{Name: config.HandlerDatabaseQuery, Retry: true},
		{Name: config.HandlerGoogleSearch, Retry: true},
		{Name: config.HandlerVisualize, Retry: true},
	}
	if h.Conversation != nil {
		steps[0].Run = func(ctx context.Context, q string) (Result, error) {
			reply, err := h.Conversation.Respond(ctx, q)
			if err != nil {
				return Result{}, err
			}
			return conversationResult(reply), nil
		}
	}
	if h.Lookup != nil {
		steps[1].Run = func(ctx context.Context, q string) (Result, error) {
			res, err := h.Lookup.Lookup(ctx, q)
			if err != nil {
				return Result{}, err
			}
			return lookupResult(res), nil
		}
	}
	if h.Search != nil {
		steps[2].Run = func(ctx context.Context, q string) (Result, error) {
			res, err := h.Search.Search(ctx, q)
			if err != nil {
				return Result{}, err
			}
			return searchResult(res), nil
		}
	}
	if h.Visualizer != nil {
		steps[3].Run = func(ctx context.Context, q string) (Result, error) {
			res, err := h.Visualizer.Visualize(ctx, q)
			if err != nil {
				return Result{}, err
			}
			return visualizationResult(res), nil
		}
	}
	return steps
}

func conversationResult(reply *handler.Reply) Result {
	if reply == nil {
		reply = &handler.Reply{Type: "error"}
	}
	return Result{
		HandlerName:    config.HandlerConversation,
		Content:        reply.Message,
		AdditionalData: map[string]any{"type": reply.Type},
	}
}

func lookupResult(res *handler.LookupResult) Result {
	if res == nil {
		res = &handler.LookupResult{}
	}

	var sb strings.Builder
	if len(res.Rows) == 0 {
		sb.WriteString("No matching data found.")
	} else {
		sb.WriteString("Database query results:\n")
		sb.WriteString("SQL: " + res.Query + "\n\n")
		if len(res.Columns) > 0 {
			sb.WriteString("| " + strings.Join(res.Columns, " | ") + " |\n")
			rule := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				rule[i] = strings.Repeat("-", len(col))
			}
			sb.WriteString("| " + strings.Join(rule, " | ") + " |\n")
		}
		for _, row := range res.Rows {
			cells := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				if v, ok := row[col]; ok && v != nil {
					cells[i] = fmt.Sprint(v)
				}
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}

	return Result{
		HandlerName: config.HandlerDatabaseQuery,
		Content:     sb.String(),
		AdditionalData: map[string]any{
			"success": true,
			"query":   res.Query,
			"columns": res.Columns,
			"results": res.Rows,
		},
	}
}

func searchResult(res *handler.SearchResult) Result {
	if res == nil {
		res = &handler.SearchResult{Status: handler.SearchError}
	}

	var content string
	if res.Status == handler.SearchSuccess {
		var sb strings.Builder
		sb.WriteString("Web search results:\n\n")
		for i, hit := range res.Results {
			sb.WriteString(fmt.Sprintf("%d. **%s**\n", i+1, hit.Title))
			sb.WriteString(fmt.Sprintf("   URL: %s\n", hit.URL))
			sb.WriteString(fmt.Sprintf("   %s\n\n", hit.Content))
		}
		content = sb.String()
	} else {
		content = res.Message
		if content == "" {
			content = "No matching results found."
		}
	}

	return Result{
		HandlerName: config.HandlerGoogleSearch,
		Content:     content,
		AdditionalData: map[string]any{
			"success":        res.Status == handler.SearchSuccess,
			"search_results": res.Results,
		},
	}
}

func visualizationResult(res *handler.VisualizationResult) Result {
	if res == nil {
		res = &handler.VisualizationResult{Message: "No chart was produced."}
	}

	content := res.Message
	if res.Success {
		content = "Chart created and saved at: " + res.Path
	}

	data := map[string]any{
		"success":              res.Success,
		"visualization_path":   res.Path,
		"visualization_url":    res.URL,
		"visualization_base64": res.Base64,
	}
	if res.ChartInfo != nil {
		data["chart_info"] = res.ChartInfo
	}
	return Result{
		HandlerName:    config.HandlerVisualize,
		Content:        content,
		AdditionalData: data,
	}
}
