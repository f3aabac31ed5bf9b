package chart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zen-systems/finquery/pkg/handler"
)

const vegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

// BuildSpec renders info over rows as a Vega-Lite specification.
func BuildSpec(info handler.ChartInfo, columns []string, rows []map[string]any) (map[string]any, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data to chart")
	}
	if info.XColumn == "" || info.YColumn == "" {
		return nil, fmt.Errorf("chart needs x and y columns")
	}

	ys := strings.Split(info.YColumn, ",")
	x := info.XColumn
	xType := fieldType(rows, x)

	spec := map[string]any{
		"$schema":     vegaLiteSchema,
		"title":       info.Title,
		"description": info.Explanation,
		"width":       640,
		"height":      400,
		"data":        map[string]any{"values": rows},
	}

	yField, yTitle := ys[0], ys[0]
	var colorField map[string]any
	if len(ys) > 1 && info.ChartType != "heatmap" {
		spec["transform"] = []any{
			map[string]any{"fold": ys, "as": []string{"series", "value"}},
		}
		yField, yTitle = "value", strings.Join(ys, ", ")
		colorField = map[string]any{"field": "series", "type": "nominal"}
	}

	var encoding map[string]any
	switch info.ChartType {
	case "line":
		spec["mark"] = map[string]any{"type": "line", "point": true}
		encoding = map[string]any{
			"x": axis(x, orderedType(xType)),
			"y": titled(axis(yField, "quantitative"), yTitle),
		}
	case "pie":
		spec["mark"] = "arc"
		encoding = map[string]any{
			"theta": axis(yField, "quantitative"),
			"color": axis(x, "nominal"),
		}
	case "scatter":
		spec["mark"] = "point"
		encoding = map[string]any{
			"x": axis(x, "quantitative"),
			"y": titled(axis(yField, "quantitative"), yTitle),
		}
	case "heatmap":
		spec["mark"] = "rect"
		encoding = map[string]any{
			"x": axis(x, "ordinal"),
			"y": axis(ys[0], "ordinal"),
		}
		if value := thirdColumn(columns, x, ys[0]); value != "" {
			encoding["color"] = axis(value, "quantitative")
		} else {
			encoding["color"] = map[string]any{"aggregate": "count", "type": "quantitative"}
		}
	case "boxplot":
		spec["mark"] = "boxplot"
		encoding = map[string]any{
			"y": titled(axis(yField, "quantitative"), yTitle),
		}
		if x != ys[0] {
			encoding["x"] = axis(x, "nominal")
		}
	case "histogram":
		spec["mark"] = "bar"
		field := ys[0]
		if fieldType(rows, field) != "quantitative" {
			field = x
		}
		encoding = map[string]any{
			"x": map[string]any{"field": field, "type": "quantitative", "bin": map[string]any{"maxbins": 30}},
			"y": map[string]any{"aggregate": "count", "type": "quantitative"},
		}
	default:
		spec["mark"] = "bar"
		encoding = map[string]any{
			"x": axis(x, orderedType(xType)),
			"y": titled(axis(yField, "quantitative"), yTitle),
		}
	}
	if colorField != nil {
		if _, ok := encoding["color"]; !ok {
			encoding["color"] = colorField
		}
	}
	spec["encoding"] = encoding
	return spec, nil
}

func axis(field, typ string) map[string]any {
	return map[string]any{"field": field, "type": typ}
}

func titled(enc map[string]any, title string) map[string]any {
	enc["title"] = title
	return enc
}

// orderedType keeps temporal axes temporal and treats everything else as a
// category.
func orderedType(t string) string {
	if t == "temporal" {
		return t
	}
	return "nominal"
}

func thirdColumn(columns []string, used ...string) string {
	for _, c := range columns {
		if !contains(used, c) {
			return c
		}
	}
	return ""
}

// fieldType infers the Vega-Lite measurement type of a column.
func fieldType(rows []map[string]any, field string) string {
	numeric, temporal, seen := true, true, false
	for _, row := range rows {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		seen = true
		if !isNumber(v) {
			numeric = false
		}
		if !isDate(v) {
			temporal = false
		}
	}
	switch {
	case !seen:
		return "nominal"
	case numeric:
		return "quantitative"
	case temporal:
		return "temporal"
	default:
		return "nominal"
	}
}

func isNumber(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(val, 64)
		return err == nil
	default:
		return false
	}
}

func isDate(v any) bool {
	switch val := v.(type) {
	case time.Time:
		return true
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if _, err := time.Parse(layout, val); err == nil {
				return true
			}
		}
	}
	return false
}
