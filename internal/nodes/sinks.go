package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// ConsoleOutput pretty-prints every input record to its writer and does
// not forward anything; it is a pure sink.
type ConsoleOutput struct {
	Writer io.Writer
}

func (c ConsoleOutput) Run(_ context.Context, inputs []In, _ []Out) error {
	w := c.Writer
	for v := range inputs[0] {
		data, err := json.MarshalIndent(v.Native(), "", "  ")
		if err != nil {
			return fmt.Errorf("console output: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// SetData maps every input record to a constant configured value. The
// value may contain {{path}} placeholders at any depth, rendered
// against each incoming record in turn.
type SetData struct {
	Value record.Record
}

func (s SetData) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		outputs[0] <- expression.RenderRecord(s.Value, v)
	}
	return nil
}
