package workflow

import "github.com/zen-systems/finquery/pkg/config"

var knownHandlers = map[string]bool{
	config.HandlerVisualize:     true,
	config.HandlerDatabaseQuery: true,
	config.HandlerGoogleSearch:  true,
	config.HandlerConversation:  true,
}

// CurrentHandler names the handler to present as having answered. The static
// priority is visualization (only with a renderable chart), lookup, search,
// then the first selected handler, defaulting to conversation. The most
// recent result from a known handler overrides that choice.
func CurrentHandler(selected []string, results []Result, chartAvailable bool) string {
	current := config.HandlerConversation
	if len(selected) > 0 {
		switch {
		case chartAvailable && containsName(selected, config.HandlerVisualize):
			current = config.HandlerVisualize
		case containsName(selected, config.HandlerDatabaseQuery):
			current = config.HandlerDatabaseQuery
		case containsName(selected, config.HandlerGoogleSearch):
			current = config.HandlerGoogleSearch
		default:
			current = selected[0]
		}
	}

	for i := len(results) - 1; i >= 0; i-- {
		if knownHandlers[results[i].HandlerName] {
			return results[i].HandlerName
		}
	}
	return current
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
