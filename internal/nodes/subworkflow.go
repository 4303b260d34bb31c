package nodes

import (
	"context"
	"fmt"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/tracing"
)

// WorkflowRunner loads and executes the workflow document at path,
// injecting initial into its trigger node and returning the last value
// observed from its Return node (or record.Null if nothing was
// returned). It is supplied by whatever wires up the node registry,
// since the engine that implements it sits above this package.
type WorkflowRunner func(ctx context.Context, path string, initial record.Record) (record.Record, error)

// ExecuteWorkflow runs a nested workflow once per input record.
type ExecuteWorkflow struct {
	Path string
	// Inputs, when HasInputs is true, replaces the current record as
	// the sub-workflow's injected input on every invocation.
	Inputs    record.Record
	HasInputs bool
	Runner    WorkflowRunner
	// ParentPath labels the TraceSubWorkflow span; optional.
	ParentPath string
	// Depth labels the TraceSubWorkflow span with sub-workflow nesting
	// level; optional, defaults to 0.
	Depth int
}

func (e ExecuteWorkflow) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		injected := v
		if e.HasInputs {
			injected = e.Inputs
		}
		var result record.Record
		err := tracing.TraceSubWorkflow(ctx, e.ParentPath, e.Path, e.Depth, func(ctx context.Context) error {
			r, runErr := e.Runner(ctx, e.Path, injected)
			result = r
			return runErr
		})
		if err != nil {
			return fmt.Errorf("execute workflow %s: %w", e.Path, err)
		}
		outputs[0] <- result
	}
	return nil
}

// LoopCondition is evaluated against each iteration's captured result to
// decide whether Loop continues.
type LoopCondition struct {
	Key      string
	Operator string
	Value    record.Record
}

// Loop iteratively runs a sub-workflow, feeding each iteration's
// captured Return value in as the next iteration's input, until
// Condition evaluates false or MaxIters is reached.
type Loop struct {
	Path      string
	MaxIters  int
	Condition LoopCondition
	Runner    WorkflowRunner
}

func (l Loop) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		current := v
		for i := 0; i < l.MaxIters; i++ {
			var result record.Record
			_, err := tracing.TraceLoopIteration(ctx, l.Path, i, func(ctx context.Context) (interface{}, error) {
				r, runErr := l.Runner(ctx, l.Path, current)
				result = r
				return r, runErr
			})
			if err != nil {
				return fmt.Errorf("loop %s: %w", l.Path, err)
			}
			current = result

			left := expression.Search(l.Condition.Key, current)
			cont, err := expression.Compare(left, l.Condition.Operator, l.Condition.Value)
			if err != nil {
				return fmt.Errorf("loop %s: condition: %w", l.Path, err)
			}
			if !cont {
				break
			}
		}
		outputs[0] <- current
	}
	return nil
}
