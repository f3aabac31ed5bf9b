// Package workflow runs a question through routing, the selected handlers and
// synthesis.
package workflow

import (
	"encoding/json"
	"strings"

	"github.com/zen-systems/finquery/pkg/router"
)

// Phase is the state machine position of a run.
type Phase string

const (
	PhaseRouting    Phase = "ROUTING"
	PhaseProcessing Phase = "PROCESSING"
	PhaseComplete   Phase = "COMPLETE"
)

// Result is one handler's contribution to a run.
type Result struct {
	HandlerName    string         `json:"handler_name"`
	Content        string         `json:"content"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// Succeeded reports the handler's own success flag.
func (r Result) Succeeded() bool {
	ok, _ := r.AdditionalData["success"].(bool)
	return ok
}

// RunState is the mutable state of a single run. Results are kept in the
// order handlers were invoked.
type RunState struct {
	ID          string
	Question    string
	Selected    []string
	Results     []Result
	FinalAnswer string
	Phase       Phase
	Decision    *router.Decision
	Round       int
}

// IsSelected reports whether name was selected for this run.
func (s *RunState) IsSelected(name string) bool {
	for _, sel := range s.Selected {
		if sel == name {
			return true
		}
	}
	return false
}

// Append records a handler result.
func (s *RunState) Append(r Result) {
	s.Results = append(s.Results, r)
}

// BuildContext concatenates every result under a labelled header, adding the
// chart metadata of successful results that carry it.
func (s *RunState) BuildContext() string {
	var sb strings.Builder
	for _, r := range s.Results {
		sb.WriteString("\n--- Result from ")
		sb.WriteString(r.HandlerName)
		sb.WriteString(" ---\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n")

		if !r.Succeeded() {
			continue
		}
		if info, ok := r.AdditionalData["chart_info"]; ok && info != nil {
			if encoded, err := json.Marshal(info); err == nil {
				sb.WriteString("\nChart info: ")
				sb.Write(encoded)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// DistinctHandlerNames lists the handlers present in the results, in order of
// first appearance.
func (s *RunState) DistinctHandlerNames() []string {
	seen := make(map[string]bool, len(s.Results))
	var names []string
	for _, r := range s.Results {
		if seen[r.HandlerName] {
			continue
		}
		seen[r.HandlerName] = true
		names = append(names, r.HandlerName)
	}
	return names
}
