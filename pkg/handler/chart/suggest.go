package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/finquery/pkg/handler"
)

// Supported chart types, in the order an explicit request is detected.
var chartTypes = []string{"bar", "line", "pie", "scatter", "heatmap", "boxplot", "histogram"}

var (
	chartTypePatterns = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp, len(chartTypes))
		for _, ct := range chartTypes {
			m[ct] = regexp.MustCompile(`\b` + ct + `\b`)
		}
		return m
	}()
	fencedJSONPattern = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*?\\})\\s*```")
)

// RequestedChartType returns the chart type named in question, or "".
func RequestedChartType(question string) string {
	q := strings.ToLower(question)
	for _, ct := range chartTypes {
		if chartTypePatterns[ct].MatchString(q) {
			return ct
		}
	}
	return ""
}

// Suggest picks a chart for the data. A chart type named in the question
// always wins over the model's suggestion; without a usable suggestion the
// first two columns are charted.
func (v *Visualizer) Suggest(ctx context.Context, question string, columns []string, rows []map[string]any) handler.ChartInfo {
	requested := RequestedChartType(question)

	info, err := v.askModel(ctx, question, columns, rows)
	if err != nil {
		v.logger.Warn("chart suggestion unavailable, using default", "question", question, "error", err)
		info = defaultChart(question, requested, columns)
	}
	if requested != "" {
		info.ChartType = requested
	}
	return normalize(info, columns)
}

func (v *Visualizer) askModel(ctx context.Context, question string, columns []string, rows []map[string]any) (handler.ChartInfo, error) {
	if v.llm == nil {
		return handler.ChartInfo{}, fmt.Errorf("no model configured")
	}
	sample := rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return handler.ChartInfo{}, fmt.Errorf("encode sample: %w", err)
	}

	raw, err := v.llm.Invoke(ctx, buildSuggestPrompt(question, columns, string(sampleJSON)))
	if err != nil {
		return handler.ChartInfo{}, err
	}
	return parseSuggestion(raw)
}

func parseSuggestion(raw string) (handler.ChartInfo, error) {
	payload := strings.TrimSpace(raw)
	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	}
	var info handler.ChartInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		return handler.ChartInfo{}, fmt.Errorf("parse chart suggestion: %w", err)
	}
	return info, nil
}

func buildSuggestPrompt(question string, columns []string, sample string) string {
	var sb strings.Builder
	sb.WriteString("Given a question and the data returned from the database:\n\n")
	sb.WriteString("Question: " + question + "\n\n")
	sb.WriteString("Columns: " + strings.Join(columns, ", ") + "\n\n")
	sb.WriteString("Sample rows: " + sample + "\n\n")
	sb.WriteString("Suggest the most suitable chart for this data and explain why. Reply in this JSON format:\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "chart_type": "` + strings.Join(chartTypes, "|") + `",` + "\n")
	sb.WriteString(`  "x_column": "column for the x axis",` + "\n")
	sb.WriteString(`  "y_column": "column for the y axis (several columns may be comma separated)",` + "\n")
	sb.WriteString(`  "title": "suggested chart title",` + "\n")
	sb.WriteString(`  "explanation": "short reason this chart fits"` + "\n")
	sb.WriteString("}\n```\n")
	return sb.String()
}

func defaultChart(question, requested string, columns []string) handler.ChartInfo {
	x, y := firstTwo(columns)
	if requested != "" {
		return handler.ChartInfo{
			ChartType:   requested,
			XColumn:     x,
			YColumn:     y,
			Title:       fmt.Sprintf("%s chart of %s by %s", requested, y, x),
			Explanation: fmt.Sprintf("%s chart requested directly by the user.", requested),
		}
	}
	title := question
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50]) + "..."
	}
	return handler.ChartInfo{
		ChartType:   "bar",
		XColumn:     x,
		YColumn:     y,
		Title:       "Chart for: " + title,
		Explanation: "Bar chart used by default because the data could not be analysed.",
	}
}

// normalize replaces unknown chart types and column names with usable ones.
func normalize(info handler.ChartInfo, columns []string) handler.ChartInfo {
	info.ChartType = strings.ToLower(strings.TrimSpace(info.ChartType))
	if info.ChartType == "box" {
		info.ChartType = "boxplot"
	}
	if !validChartType(info.ChartType) {
		info.ChartType = "bar"
	}
	x, y := firstTwo(columns)
	if !contains(columns, info.XColumn) {
		info.XColumn = x
	}

	var ys []string
	for _, col := range strings.Split(info.YColumn, ",") {
		col = strings.TrimSpace(col)
		if contains(columns, col) {
			ys = append(ys, col)
		}
	}
	if len(ys) == 0 {
		ys = []string{y}
	}
	info.YColumn = strings.Join(ys, ",")

	if info.Title == "" {
		info.Title = fmt.Sprintf("%s by %s", info.YColumn, info.XColumn)
	}
	return info
}

func firstTwo(columns []string) (string, string) {
	switch len(columns) {
	case 0:
		return "", ""
	case 1:
		return columns[0], columns[0]
	default:
		return columns[0], columns[1]
	}
}

func validChartType(ct string) bool {
	return contains(chartTypes, ct)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
