package router

import (
	"fmt"
	"strings"

	"github.com/zen-systems/finquery/pkg/config"
)

// HandlerSpec describes a routable handler. Specs are immutable once the
// registry is built.
type HandlerSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold"`
}

// Registry is the fixed, ordered set of handlers the router scores.
type Registry struct {
	specs    []HandlerSpec
	index    map[string]int
	fallback string
}

// NewRegistry validates specs and returns a registry. fallback must name one
// of the specs; it is selected whenever no handler clears its threshold.
func NewRegistry(specs []HandlerSpec, fallback string) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("registry requires at least one handler")
	}
	r := &Registry{
		specs:    make([]HandlerSpec, 0, len(specs)),
		index:    make(map[string]int, len(specs)),
		fallback: fallback,
	}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("handler with empty name")
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate handler %q", name)
		}
		if spec.Threshold < 0 || spec.Threshold > 1 {
			return nil, fmt.Errorf("handler %q: threshold %.2f outside [0,1]", name, spec.Threshold)
		}
		spec.Name = name
		r.index[name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	if _, ok := r.index[fallback]; !ok {
		return nil, fmt.Errorf("fallback handler %q is not registered", fallback)
	}
	return r, nil
}

// RegistryFromConfig builds a registry from handler configuration.
func RegistryFromConfig(handlers []config.HandlerConfig, fallback string) (*Registry, error) {
	specs := make([]HandlerSpec, 0, len(handlers))
	for _, h := range handlers {
		specs = append(specs, HandlerSpec{Name: h.Name, Description: h.Description, Threshold: h.Threshold})
	}
	return NewRegistry(specs, fallback)
}

// DefaultRegistry returns the four reference handlers with conversation as
// the fallback.
func DefaultRegistry() *Registry {
	r, err := RegistryFromConfig(config.DefaultHandlers(), config.DefaultFallback)
	if err != nil {
		panic(err)
	}
	return r
}

// Specs returns a copy of the handler specs in registry order.
func (r *Registry) Specs() []HandlerSpec {
	return append([]HandlerSpec(nil), r.specs...)
}

// Names returns handler names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, spec := range r.specs {
		names[i] = spec.Name
	}
	return names
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (HandlerSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return HandlerSpec{}, false
	}
	return r.specs[i], true
}

// Fallback returns the name of the fallback handler.
func (r *Registry) Fallback() string {
	return r.fallback
}
