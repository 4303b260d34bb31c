package nodes

import (
	"context"
	"math"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// Accumulate buffers records and emits a sequence of exactly BatchSize
// once that many have arrived, resetting afterward. When BatchSize is 0
// it buffers everything and emits one sequence on input close; with a
// positive BatchSize it also emits a final partial batch on close.
type Accumulate struct {
	BatchSize int
}

func (a Accumulate) Run(_ context.Context, inputs []In, outputs []Out) error {
	var buf []record.Record
	for v := range inputs[0] {
		buf = append(buf, v)
		if a.BatchSize > 0 && len(buf) == a.BatchSize {
			outputs[0] <- record.Slice(buf)
			buf = nil
		}
	}
	if len(buf) > 0 || a.BatchSize == 0 {
		outputs[0] <- record.Slice(buf)
	}
	return nil
}

// Dedupe holds the set of keys seen so far and forwards a record only
// the first time its key (the value at Key, or the record's own JSON
// serialization when Key is empty) is observed.
type Dedupe struct {
	Key string
}

func (d Dedupe) Run(_ context.Context, inputs []In, outputs []Out) error {
	seen := make(map[string]struct{})
	for v := range inputs[0] {
		k := d.keyOf(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		outputs[0] <- v
	}
	return nil
}

func (d Dedupe) keyOf(v record.Record) string {
	if d.Key == "" {
		return v.String()
	}
	return expression.ToString(expression.Search(d.Key, v))
}

// GroupAggregation is one requested aggregation column in GroupBy/Stats.
type GroupAggregation struct {
	Column string
	Func   string // count|sum|avg|min|max|median|variance|stddev
	Alias  string
}

// GroupBy collects all input, buckets by the composite value of Keys,
// and emits one record per group containing the group's key fields plus
// each requested aggregation. Group emission order is unspecified.
type GroupBy struct {
	Keys         []string
	Aggregations []GroupAggregation
}

func (g GroupBy) Run(_ context.Context, inputs []In, outputs []Out) error {
	type group struct {
		keyValues map[string]record.Record
		rows      []record.Record
	}
	groups := make(map[string]*group)
	var order []string

	for v := range inputs[0] {
		k := g.compositeKey(v)
		grp, ok := groups[k]
		if !ok {
			kv := make(map[string]record.Record, len(g.Keys))
			for _, key := range g.Keys {
				kv[key] = expression.Search(key, v)
			}
			grp = &group{keyValues: kv}
			groups[k] = grp
			order = append(order, k)
		}
		grp.rows = append(grp.rows, v)
	}

	for _, k := range order {
		grp := groups[k]
		out := make(map[string]record.Record, len(grp.keyValues)+len(g.Aggregations))
		for key, val := range grp.keyValues {
			out[key] = val
		}
		for _, agg := range g.Aggregations {
			out[aggName(agg)] = aggregate(grp.rows, agg.Column, agg.Func)
		}
		outputs[0] <- record.Map(out)
	}
	return nil
}

func (g GroupBy) compositeKey(v record.Record) string {
	key := ""
	for _, k := range g.Keys {
		key += expression.ToString(expression.Search(k, v)) + "\x00"
	}
	return key
}

// Stats collects every input record, then for each of Columns computes
// every operation in Operations (count|sum|mean|avg|min|max|median|
// variance|stddev) over that column's numeric values, emitting one
// result record shaped {column: {operation: value}}. A column with no
// numeric values across the whole input is emitted as null rather than
// an empty object.
type Stats struct {
	Columns    []string
	Operations []string
}

func (s Stats) Run(_ context.Context, inputs []In, outputs []Out) error {
	var rows []record.Record
	for v := range inputs[0] {
		rows = append(rows, v)
	}

	out := make(map[string]record.Record, len(s.Columns))
	for _, col := range s.Columns {
		values := numericColumn(rows, col)
		if len(values) == 0 {
			out[col] = record.Null
			continue
		}
		colStats := make(map[string]record.Record, len(s.Operations))
		for _, op := range s.Operations {
			colStats[op] = statOp(values, op)
		}
		out[col] = record.Map(colStats)
	}
	outputs[0] <- record.Map(out)
	return nil
}

// numericColumn extracts every row's numeric value at column, skipping
// rows where it is absent or not a number.
func numericColumn(rows []record.Record, column string) []float64 {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if n, ok := expression.Search(column, r).Number(); ok {
			values = append(values, n)
		}
	}
	return values
}

// statOp computes one Stats operation over a column's already-filtered
// numeric values (len(values) is the operand for "count", matching the
// column's own sample size rather than the node's total input rows).
func statOp(values []float64, op string) record.Record {
	switch op {
	case "count":
		return record.Number(float64(len(values)))
	case "sum":
		return record.Number(sum(values))
	case "mean", "avg":
		return record.Number(sum(values) / float64(len(values)))
	case "min":
		return record.Number(minOf(values))
	case "max":
		return record.Number(maxOf(values))
	case "median":
		return record.Number(median(values))
	case "variance":
		return record.Number(variance(values))
	case "stddev":
		return record.Number(math.Sqrt(variance(values)))
	default:
		return record.Null
	}
}

func aggName(agg GroupAggregation) string {
	if agg.Alias != "" {
		return agg.Alias
	}
	return agg.Func + "_" + agg.Column
}

func aggregate(rows []record.Record, column, fn string) record.Record {
	if fn == "count" {
		return record.Number(float64(len(rows)))
	}

	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if n, ok := expression.Search(column, r).Number(); ok {
			values = append(values, n)
		}
	}
	if len(values) == 0 {
		return record.Null
	}

	switch fn {
	case "sum":
		return record.Number(sum(values))
	case "avg":
		return record.Number(sum(values) / float64(len(values)))
	case "min":
		return record.Number(minOf(values))
	case "max":
		return record.Number(maxOf(values))
	case "median":
		return record.Number(median(values))
	case "variance":
		return record.Number(variance(values))
	case "stddev":
		v := variance(values)
		return record.Number(math.Sqrt(v))
	default:
		return record.Null
	}
}
