// Package chart turns a question into a chart: it looks the data up, picks a
// chart type and writes a Vega-Lite specification to disk.
package chart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/handler"
)

// Visualizer implements handler.Visualizer.
type Visualizer struct {
	lookup    handler.Lookup
	llm       adapter.Invoker
	dir       string
	urlPrefix string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Visualizer.
type Option func(*Visualizer)

// WithURLPrefix sets the URL path chart files are served under.
func WithURLPrefix(prefix string) Option {
	return func(v *Visualizer) {
		v.urlPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Visualizer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a visualizer that reads data through lookup, asks llm for a
// chart suggestion and writes chart files to dir.
func New(lookup handler.Lookup, llm adapter.Invoker, dir string, opts ...Option) *Visualizer {
	v := &Visualizer{
		lookup:    lookup,
		llm:       llm,
		dir:       dir,
		urlPrefix: "/visualizations/",
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Visualize looks up the data for question and charts it. Lookup and file
// errors are returned; data that cannot be charted yields Success=false.
func (v *Visualizer) Visualize(ctx context.Context, question string) (*handler.VisualizationResult, error) {
	data, err := v.lookup.Lookup(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("chart data: %w", err)
	}
	if len(data.Rows) == 0 {
		return &handler.VisualizationResult{
			Success: false,
			Query:   data.Query,
			Message: "The query returned no data to chart.",
		}, nil
	}

	info := v.Suggest(ctx, question, data.Columns, data.Rows)
	spec, err := BuildSpec(info, data.Columns, data.Rows)
	if err != nil {
		return &handler.VisualizationResult{
			Success: false,
			Query:   data.Query,
			Data:    data.Rows,
			Message: fmt.Sprintf("Failed to build chart: %v", err),
		}, nil
	}

	encoded, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	filename := fmt.Sprintf("visualization_%s_%s.json", v.now().Format("20060102_150405"), uuid.NewString()[:8])
	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create visualization dir: %w", err)
	}
	filePath := filepath.Join(v.dir, filename)
	if err := os.WriteFile(filePath, encoded, 0o644); err != nil {
		return nil, fmt.Errorf("write chart: %w", err)
	}
	v.logger.Info("chart written", "question", question, "path", filePath, "chart_type", info.ChartType)

	return &handler.VisualizationResult{
		Success:   true,
		Query:     data.Query,
		Data:      data.Rows,
		ChartInfo: &info,
		Path:      filePath,
		URL:       path.Join(v.urlPrefix, filename),
		Base64:    base64.StdEncoding.EncodeToString(encoded),
	}, nil
}
