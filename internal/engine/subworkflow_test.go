package engine

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/workflow"
)

// childRegistry wires a trigger (no input ports, so findTrigger picks it
// up), a pass-through, and the real Return node, so NewRunner's harvested
// result exercises the actual capture-sink protocol end to end.
func childRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Type{ID: "trigger", Outputs: []string{"out"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.ChildWorkflowTrigger{}, nil
	})
	reg.Register(registry.Type{ID: "double", Inputs: []string{"in"}, Outputs: []string{"out"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return doublerNode{}, nil
	})
	reg.Register(registry.Type{ID: "Return", Inputs: []string{"in"}, Outputs: []string{"out"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.Return{}, nil
	})
	return reg
}

// doublerNode forwards each input record doubled, to prove the injected
// record actually reached the sub-workflow rather than some stale value.
type doublerNode struct{}

func (doublerNode) Run(_ context.Context, inputs []nodes.In, outputs []nodes.Out) error {
	for v := range inputs[0] {
		n, _ := v.Number()
		outputs[0] <- record.Number(n * 2)
	}
	return nil
}

func fixedLoader(def workflow.Definition) DocumentLoader {
	return func(string) (workflow.Definition, error) { return def, nil }
}

func TestNewRunnerCapturesReturnValue(t *testing.T) {
	reg := childRegistry()
	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "trigger", Type: "trigger"},
			{ID: "double", Type: "double"},
			{ID: "ret", Type: "Return"},
		},
		Edges: []workflow.EdgeDef{
			{From: "trigger", To: "double"},
			{From: "double", To: "ret"},
		},
	}

	runner := NewRunner(reg, nil, fixedLoader(def), 10)
	result, err := runner(context.Background(), "child.yaml", record.Number(21))
	require.NoError(t, err)
	n, ok := result.Number()
	require.True(t, ok)
	assert.Equal(t, 42.0, n)
}

func TestNewRunnerNoReturnYieldsNull(t *testing.T) {
	reg := childRegistry()
	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "trigger", Type: "trigger"},
			{ID: "double", Type: "double"},
		},
		Edges: []workflow.EdgeDef{{From: "trigger", To: "double"}},
	}

	runner := NewRunner(reg, nil, fixedLoader(def), 10)
	result, err := runner(context.Background(), "child.yaml", record.Number(21))
	require.NoError(t, err)
	assert.Equal(t, record.Null, result)
}

func TestNewRunnerEnforcesDepthLimit(t *testing.T) {
	reg := childRegistry()
	def := workflow.Definition{
		Nodes: []workflow.NodeDef{{ID: "trigger", Type: "trigger"}},
	}

	runner := NewRunner(reg, nil, fixedLoader(def), 1)
	ctx := withDepth(context.Background(), 1)
	_, err := runner(ctx, "child.yaml", record.Number(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth limit")
}

func TestFileLoaderLoadsFromDisk(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Type{ID: "trigger", Outputs: []string{"out"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return &sourceNode{}, nil
	})

	dir := t.TempDir()
	path := dir + "/wf.json"
	doc := `{"nodes":[{"id":"a","type":"trigger"}],"edges":[]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	load := FileLoader(reg)
	def, err := load(path)
	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "a", def.Nodes[0].ID)
}
