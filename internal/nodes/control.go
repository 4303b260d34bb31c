package nodes

import (
	"context"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// Router evaluates key as a path query on each record and compares the
// result to value under operator, sending the original record to output
// 0 (true) or output 1 (false). When Expression is set instead, the
// whole condition is a single expr-lang boolean expression evaluated
// against the record, bypassing Key/Value/Operator entirely.
type Router struct {
	Key      string
	Value    record.Record
	Operator string

	Expression string
	Formula    *expression.Formula
}

func (r Router) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		ok, err := r.evaluate(v)
		if err != nil {
			return err
		}
		if ok {
			outputs[0] <- v
		} else {
			outputs[1] <- v
		}
	}
	return nil
}

func (r Router) evaluate(v record.Record) (bool, error) {
	if r.Expression != "" {
		return r.Formula.EvalBool(r.Expression, v)
	}
	left := expression.Search(r.Key, v)
	return expression.Compare(left, r.Operator, r.Value)
}

// SwitchCase is one case entry: a literal value compared (loosely,
// string form) against the rendered expression.
type SwitchCase struct {
	Value string
}

// Switch renders expression to a string per record and forwards it to
// the first output whose case matches; unmatched records go to the
// default port (index len(Cases)).
type Switch struct {
	Expression string
	Cases      []SwitchCase
}

// OutputPorts reports one port per case plus the default, so the
// executor materializes every port Run can address even when no edge is
// wired to it.
func (s Switch) OutputPorts() int { return len(s.Cases) + 1 }

func (s Switch) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		rendered := expression.Render(s.Expression, v)
		port := len(s.Cases)
		for i, c := range s.Cases {
			if c.Value == rendered {
				port = i
				break
			}
		}
		outputs[port] <- v
	}
	return nil
}

// Split resolves Path (or uses the record itself when Path is empty)
// and emits each element of a sequence result individually, or the
// single resolved value when it is not a sequence.
type Split struct {
	Path string
}

func (s Split) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		target := v
		if s.Path != "" {
			target = expression.Search(s.Path, v)
		}
		if arr, ok := target.Slice(); ok {
			for _, el := range arr {
				outputs[0] <- el
			}
			continue
		}
		outputs[0] <- target
	}
	return nil
}
