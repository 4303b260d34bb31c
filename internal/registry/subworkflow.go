package registry

import (
	"fmt"

	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
)

// RegisterSubWorkflowNodes adds the ExecuteWorkflow and Loop node types,
// both backed by runner. They live in their own file, rather than
// defaults.go, because — unlike every other built-in node — their
// factory closes over something the registry package itself cannot
// build: a way to run another workflow. Standard() does not call this;
// a host wires it in once it has an engine.Run-backed runner (see
// engine.NewRunner), since the registry package must not import the
// engine package that implements Run (engine already imports registry).
func (r *Registry) RegisterSubWorkflowNodes(runner nodes.WorkflowRunner) {
	r.Register(Type{ID: "ExecuteWorkflow", Label: "Execute Workflow", Category: "control", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "path", Type: "string", Required: true},
			{Name: "inputs", Type: "record"},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Path      string      `json:"path"`
				Inputs    interface{} `json:"inputs"`
				HasInputs bool        `json:"-"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Path == "" {
				return nil, fmt.Errorf("registry: execute workflow: path is required")
			}
			_, hasInputs := configValue(config, "inputs")
			return nodes.ExecuteWorkflow{
				Path:      cfg.Path,
				Inputs:    record.FromNative(cfg.Inputs),
				HasInputs: hasInputs,
				Runner:    runner,
			}, nil
		})

	r.Register(Type{ID: "Loop", Label: "Loop", Category: "control", Inputs: []string{"in"}, Outputs: []string{"out"},
		Props: []Property{
			{Name: "path", Type: "string", Required: true},
			{Name: "max_iters", Type: "number", Required: true},
			{Name: "condition", Type: "record", Required: true},
		}},
		func(config interface{}, _ Secrets) (nodes.Node, error) {
			var cfg struct {
				Path     string `json:"path"`
				MaxIters int    `json:"max_iters"`
				Condition struct {
					Key      string      `json:"key"`
					Operator string      `json:"operator"`
					Value    interface{} `json:"value"`
				} `json:"condition"`
			}
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Path == "" {
				return nil, fmt.Errorf("registry: loop: path is required")
			}
			if cfg.MaxIters <= 0 {
				return nil, fmt.Errorf("registry: loop: max_iters must be positive")
			}
			return nodes.Loop{
				Path:     cfg.Path,
				MaxIters: cfg.MaxIters,
				Condition: nodes.LoopCondition{
					Key:      cfg.Condition.Key,
					Operator: cfg.Condition.Operator,
					Value:    record.FromNative(cfg.Condition.Value),
				},
				Runner: runner,
			}, nil
		})
}
