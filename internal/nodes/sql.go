package nodes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/security"
)

// SqlQueryConfig configures SqlQuery. ParamsTemplate, when set, is
// rendered per input record and must produce a JSON array literal; its
// elements become Query's positional parameters, in order.
type SqlQueryConfig struct {
	Query          string
	ParamsTemplate string
}

// SqlQuery runs Cfg.Query once per input record against a shared *sql.DB
// pool (grounded on the Rust original's sql_node.rs, which connects its
// pool once before looping over inputs rather than reconnecting per
// record, and the teacher's postgres.go PostgresQueryAction for the
// column-scan-to-map idiom), forwarding
// {"rows": [...], "original_input": record}. A single record's query
// error is reported inline as {"error": ..., "original_input": record}
// rather than failing the node, matching HttpRequest's per-record error
// handling in httprequest.go.
type SqlQuery struct {
	Cfg SqlQueryConfig
	DB  *sql.DB
}

func (s SqlQuery) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		rows, err := s.runOne(ctx, v)
		if err != nil {
			outputs[0] <- record.Map(map[string]record.Record{
				"error":          record.String(err.Error()),
				"original_input": v,
			})
			continue
		}
		outputs[0] <- record.Map(map[string]record.Record{
			"rows":           record.FromNative(rows),
			"original_input": v,
		})
	}
	return nil
}

func (s SqlQuery) runOne(ctx context.Context, in record.Record) ([]interface{}, error) {
	params, err := s.params(in)
	if err != nil {
		return nil, fmt.Errorf("sql query: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, s.Cfg.Query, params...)
	if err != nil {
		return nil, fmt.Errorf("sql query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql query: columns: %w", err)
	}

	var result []interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sql query: scan: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql query: %w", err)
	}
	return result, nil
}

// params renders ParamsTemplate against in and decodes it as a JSON
// array of positional query parameters. Each string element is screened
// for SQL-injection patterns as defense-in-depth; the driver binds every
// parameter out of band, but a string that nonetheless looks like an
// attempt is worth refusing rather than quietly passing through.
func (s SqlQuery) params(in record.Record) ([]interface{}, error) {
	if s.Cfg.ParamsTemplate == "" {
		return nil, nil
	}
	rendered := expression.Render(s.Cfg.ParamsTemplate, in)
	var parsed []interface{}
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		return nil, fmt.Errorf("parameters template did not render a JSON array: %w", err)
	}
	for i, p := range parsed {
		if str, ok := p.(string); ok && security.ContainsSQLInjection(str) {
			return nil, fmt.Errorf("parameter %d rejected: resembles a SQL injection attempt", i)
		}
	}
	return parsed, nil
}
