// Package sqllookup answers questions by generating PostgreSQL queries with a
// language model and running them against the market database.
package sqllookup

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/zen-systems/finquery/pkg/adapter"
	"github.com/zen-systems/finquery/pkg/handler"
)

//go:embed schema.sql
var defaultSchema string

// ErrNotReadOnly is returned when the generated statement is not a query.
var ErrNotReadOnly = errors.New("generated statement is not a read-only query")

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Lookup implements handler.Lookup over PostgreSQL.
type Lookup struct {
	llm    adapter.Invoker
	db     Querier
	schema string
	logger *slog.Logger
}

// Option configures a Lookup.
type Option func(*Lookup)

// WithSchema replaces the schema description given to the model.
func WithSchema(schema string) Option {
	return func(l *Lookup) {
		l.schema = schema
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a lookup handler.
func New(llm adapter.Invoker, db Querier, opts ...Option) *Lookup {
	l := &Lookup{
		llm:    llm,
		db:     db,
		schema: defaultSchema,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lookup generates a query for question, runs it and returns the rows.
func (l *Lookup) Lookup(ctx context.Context, question string) (*handler.LookupResult, error) {
	query, err := l.GenerateQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("generated query", "question", question, "sql", query)

	columns, rows, err := l.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return &handler.LookupResult{Query: query, Columns: columns, Rows: rows}, nil
}

// GenerateQuery asks the model for a single PostgreSQL query.
func (l *Lookup) GenerateQuery(ctx context.Context, question string) (string, error) {
	raw, err := l.llm.Invoke(ctx, buildQueryPrompt(l.schema, question))
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	query := handler.StripCodeFences(raw, "sql")
	if query == "" {
		return "", fmt.Errorf("generate query: model returned no SQL")
	}
	return query, nil
}

// Execute runs query and returns the column names and rows keyed by column.
func (l *Lookup) Execute(ctx context.Context, query string) ([]string, []map[string]any, error) {
	if !isReadOnly(query) {
		return nil, nil, ErrNotReadOnly
	}

	rows, err := l.db.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = normalizeValue(values[i])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	return columns, out, nil
}

func buildQueryPrompt(schema, question string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert at writing SQL for financial data. ")
	sb.WriteString("If the question involves a calculation, write the financial computation in SQL.\n")
	sb.WriteString("Database schema:\n")
	sb.WriteString(schema)
	sb.WriteString("\n\nWrite one standard PostgreSQL query that answers:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nReturn only the SQL query, without explanation.")
	return sb.String()
}

func isReadOnly(query string) bool {
	q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if strings.Contains(q, ";") {
		return false
	}
	fields := strings.Fields(strings.ToLower(q))
	if len(fields) == 0 {
		return false
	}
	return fields[0] == "select" || fields[0] == "with"
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		return numericToFloat(val)
	case *pgtype.Numeric:
		if val == nil {
			return nil
		}
		return numericToFloat(*val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return v
	}
}

func numericToFloat(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}
