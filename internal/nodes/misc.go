package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/javascript"
	"github.com/flowgraph/runtime/internal/record"
)

// Delay forwards each input record after sleeping Duration.
type Delay struct {
	Duration time.Duration
}

func (d Delay) Run(ctx context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		timer := time.NewTimer(d.Duration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
		outputs[0] <- v
	}
	return nil
}

// CodeConfig configures Code. Lang must be "js"/"javascript" (or empty,
// which means the same); the factory rejects anything else at build
// time, so Run never has to guess what language a script is in.
type CodeConfig struct {
	Lang string
	Code string
}

// Code evaluates a user script once per input record inside a fresh
// sandboxed JS VM, binding `input` to the record and reading the
// script's `output` variable back as the forwarded value.
type Code struct {
	Cfg    CodeConfig
	Engine *javascript.Engine
}

func (c Code) Run(ctx context.Context, inputs []In, outputs []Out) error {
	script := "var input = record;\n" + c.Cfg.Code + "\nreturn output;"
	for v := range inputs[0] {
		result, err := c.Engine.Execute(ctx, script, v)
		if err != nil {
			return fmt.Errorf("code: %w", err)
		}
		outputs[0] <- result.Value
	}
	return nil
}

// Return renders Value (or forwards the record verbatim when Value is
// unset) for each received record. A sub-workflow's executor host
// observes these emissions through the capture-edge protocol.
type Return struct {
	Value record.Record
	// HasValue distinguishes "no value configured, forward verbatim"
	// from a configured literal null.
	HasValue bool
}

func (r Return) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		if !r.HasValue {
			outputs[0] <- v
			continue
		}
		outputs[0] <- expression.RenderRecord(r.Value, v)
	}
	return nil
}
