package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowgraph/runtime/internal/expression"
	"github.com/flowgraph/runtime/internal/record"
)

// SelectOutputType names the coercion Select applies to a rendered
// template string before forwarding it.
type SelectOutputType string

const (
	SelectOutputAuto    SelectOutputType = "auto"
	SelectOutputString  SelectOutputType = "string"
	SelectOutputNumber  SelectOutputType = "number"
	SelectOutputBoolean SelectOutputType = "boolean"
	SelectOutputJSON    SelectOutputType = "json"
)

// SelectConfig configures Select.
type SelectConfig struct {
	Template   string
	OutputType SelectOutputType
}

// Select renders Cfg.Template per input record (the same
// internal/expression templating every other node uses) and coerces
// the rendered string to Cfg.OutputType, matching the Rust original's
// select_node.rs. Auto tries JSON first and falls back to the raw
// string. A record that cannot be coerced to the requested type is
// dropped rather than failing the node, matching select_node.rs's
// log-and-skip behavior.
type Select struct {
	Cfg SelectConfig
}

func (s Select) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		rendered := expression.Render(s.Cfg.Template, v)
		out, ok, err := s.coerce(rendered)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		outputs[0] <- out
	}
	return nil
}

func (s Select) coerce(rendered string) (record.Record, bool, error) {
	switch s.Cfg.OutputType {
	case SelectOutputString:
		return record.String(rendered), true, nil
	case SelectOutputNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(rendered), 64)
		if err != nil {
			return record.Null, false, nil
		}
		return record.Number(n), true, nil
	case SelectOutputBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(rendered))
		if err != nil {
			return record.Null, false, nil
		}
		return record.Bool(b), true, nil
	case SelectOutputJSON:
		var parsed interface{}
		if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
			return record.Null, false, nil
		}
		return record.FromNative(parsed), true, nil
	case SelectOutputAuto, "":
		var parsed interface{}
		if err := json.Unmarshal([]byte(rendered), &parsed); err == nil {
			return record.FromNative(parsed), true, nil
		}
		return record.String(rendered), true, nil
	default:
		return record.Null, false, fmt.Errorf("select: unknown output_type %q", s.Cfg.OutputType)
	}
}
