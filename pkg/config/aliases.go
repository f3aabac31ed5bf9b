package config

import (
	"fmt"
	"sort"
)

// ModelAliases manages model alias resolution and validation.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// ValidateModel checks if a model exists in the provider's list.
func (a *ModelAliases) ValidateModel(adapter, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}

	models, ok := a.Providers[adapter]
	if !ok {
		return fmt.Errorf("unknown adapter %q", adapter)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, adapter)
}

// ListAliases returns the alias names in sorted order.
func (a *ModelAliases) ListAliases() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Aliases))
	for k := range a.Aliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ProviderForModel returns the provider name for a canonical model.
func (a *ModelAliases) ProviderForModel(model string) string {
	if a == nil || a.Providers == nil {
		return ""
	}
	for provider, models := range a.Providers {
		for _, m := range models {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// DefaultAliases returns the built-in model aliases.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"fast":     "gpt-4o-mini",
			"smart":    "gpt-4o",
			"quality":  "claude-sonnet-4-20250514",
			"research": "gemini-2.0-flash",
			"cheap":    "deepseek-chat",
			"reason":   "deepseek-reasoner",
		},
		Providers: map[string][]string{
			"openai":    {"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"},
			"anthropic": {"claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"google":    {"gemini-2.0-flash", "gemini-2.5-pro"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
			"mock":      {"mock-1"},
		},
	}
}
