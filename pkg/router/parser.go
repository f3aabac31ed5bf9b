package router

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ConfidenceParser extracts per-handler confidences from free-form classifier
// output. Names missing from the output must map to 0.
type ConfidenceParser interface {
	Parse(raw string, names []string) (map[string]float64, error)
}

// BestEffortParser tries, in order: the first flat brace-delimited object in
// the text, the whole text with code fences stripped, then a per-name
// `"name": number` scan. Output in which no tier finds any registered handler
// is an error.
type BestEffortParser struct{}

var flatObjectPattern = regexp.MustCompile(`\{[^{}]+\}`)

// Parse implements ConfidenceParser.
func (BestEffortParser) Parse(raw string, names []string) (map[string]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty classifier output")
	}

	if match := flatObjectPattern.FindString(raw); match != "" {
		if scores, ok := decodeScores(match, names); ok {
			return scores, nil
		}
	}

	if scores, ok := decodeScores(stripCodeFences(raw), names); ok {
		return scores, nil
	}

	if scores, ok := scanScores(raw, names); ok {
		return scores, nil
	}
	return nil, fmt.Errorf("no handler confidences in classifier output")
}

func stripCodeFences(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

func decodeScores(content string, names []string) (map[string]float64, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, false
	}
	scores := zeroScores(names)
	found := false
	for _, name := range names {
		switch v := raw[name].(type) {
		case float64:
			scores[name] = v
			found = true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				scores[name] = f
				found = true
			}
		}
	}
	// An object naming none of the handlers is treated as unparsed so a
	// nested fragment does not mask the real payload.
	return scores, found
}

func scanScores(raw string, names []string) (map[string]float64, bool) {
	scores := zeroScores(names)
	found := false
	for _, name := range names {
		pattern := regexp.MustCompile(regexp.QuoteMeta(name) + `["']?\s*:\s*(\d+\.?\d*)`)
		m := pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			scores[name] = f
			found = true
		}
	}
	return scores, found
}

func zeroScores(names []string) map[string]float64 {
	scores := make(map[string]float64, len(names))
	for _, name := range names {
		scores[name] = 0
	}
	return scores
}
