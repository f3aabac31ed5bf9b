package router

import "math"

// HandlerScore is one handler's classification outcome for a question.
type HandlerScore struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Selected   bool    `json:"selected"`
}

// Decision captures routing decision details. Selected is never empty.
type Decision struct {
	Question string         `json:"question"`
	Scores   []HandlerScore `json:"handlers"`
	Selected []string       `json:"selected_handlers"`
	// ClassifierError is set when classification failed and every score fell
	// back to zero.
	ClassifierError string `json:"classifier_error,omitempty"`
}

// IsSelected reports whether name is among the selected handlers.
func (d *Decision) IsSelected(name string) bool {
	if d == nil {
		return false
	}
	for _, s := range d.Selected {
		if s == name {
			return true
		}
	}
	return false
}

// Rounded returns a copy with confidences rounded to two decimals.
func (d *Decision) Rounded() *Decision {
	out := *d
	out.Scores = make([]HandlerScore, len(d.Scores))
	for i, s := range d.Scores {
		s.Confidence = math.Round(s.Confidence*100) / 100
		out.Scores[i] = s
	}
	out.Selected = append([]string(nil), d.Selected...)
	return &out
}
