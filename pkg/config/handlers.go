package config

// Handler names of the reference registry.
const (
	HandlerConversation  = "conversation"
	HandlerDatabaseQuery = "database_query"
	HandlerGoogleSearch  = "google_search"
	HandlerVisualize     = "visualize"

	DefaultFallback = HandlerConversation
)

// HandlerConfig describes one routable handler.
type HandlerConfig struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Threshold   float64 `yaml:"threshold"`
}

// DefaultHandlers returns the four reference handlers. Visualization carries
// the highest threshold since it is the most expensive handler to run.
func DefaultHandlers() []HandlerConfig {
	return []HandlerConfig{
		{
			Name:        HandlerDatabaseQuery,
			Description: "Query the stock market database for company information, prices, and financial metrics",
			Threshold:   0.2,
		},
		{
			Name:        HandlerGoogleSearch,
			Description: "Search the web for recent news, events, and information not present in the database",
			Threshold:   0.2,
		},
		{
			Name:        HandlerVisualize,
			Description: "Create charts and visualizations from stock market data",
			Threshold:   0.7,
		},
		{
			Name:        HandlerConversation,
			Description: "Handle greetings, small talk, help requests, and general questions",
			Threshold:   0.2,
		},
	}
}
