package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/workflow"
)

// These tests drive whole workflows through Run with the real node
// library, end to end: source records in, channel topology, taps,
// fan-in/fan-out helpers, node bodies, records out.

func scenarioRegistry(sink *[]record.Record) *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Type{ID: "Manual", Outputs: []string{"out"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.ManualTrigger{}, nil
	})
	reg.Register(registry.Type{ID: "collect"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return collector{out: sink}, nil
	})
	return reg
}

func TestScenarioSplitAccumulateRoundTrip(t *testing.T) {
	var out []record.Record
	reg := scenarioRegistry(&out)
	seq := record.Slice([]record.Record{
		record.Number(1), record.Number(2), record.Number(3), record.Number(4), record.Number(5),
	})
	reg.Register(registry.Type{ID: "set"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.SetData{Value: record.Map(map[string]record.Record{"json": seq})}, nil
	})
	reg.Register(registry.Type{ID: "split"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.Split{Path: "json"}, nil
	})
	reg.Register(registry.Type{ID: "acc"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.Accumulate{}, nil
	})

	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "m", Type: "Manual"},
			{ID: "s", Type: "set"},
			{ID: "sp", Type: "split"},
			{ID: "a", Type: "acc"},
			{ID: "c", Type: "collect"},
		},
		Edges: []workflow.EdgeDef{
			{From: "m", To: "s"},
			{From: "s", To: "sp"},
			{From: "sp", To: "a"},
			{From: "a", To: "c"},
		},
	}

	require.NoError(t, Run(context.Background(), def, reg, nil, Options{}))
	require.Len(t, out, 1)
	assert.True(t, record.Equal(seq, out[0]), "round trip should reproduce the original sequence, got %v", out[0])
}

func TestScenarioBatchedAccumulate(t *testing.T) {
	var out []record.Record
	reg := scenarioRegistry(&out)
	values := make([]record.Record, 13)
	for i := range values {
		values[i] = record.Number(float64(i + 1))
	}
	reg.Register(registry.Type{ID: "src"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return &sourceNode{values: values}, nil
	})
	reg.Register(registry.Type{ID: "acc"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.Accumulate{BatchSize: 5}, nil
	})

	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "s", Type: "src"},
			{ID: "a", Type: "acc"},
			{ID: "c", Type: "collect"},
		},
		Edges: []workflow.EdgeDef{
			{From: "s", To: "a"},
			{From: "a", To: "c"},
		},
	}

	require.NoError(t, Run(context.Background(), def, reg, nil, Options{}))
	require.Len(t, out, 3)
	assert.Equal(t, 5, out[0].Len())
	assert.Equal(t, 5, out[1].Len())
	assert.Equal(t, 3, out[2].Len())
}

func TestScenarioWaitSynchronizesTwoStreams(t *testing.T) {
	var out0, out1 []record.Record
	reg := registry.New()
	reg.Register(registry.Type{ID: "fast"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return &sourceNode{values: []record.Record{record.Number(1), record.Number(2), record.Number(3)}}, nil
	})
	reg.Register(registry.Type{ID: "slow"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return slowSource{values: []record.Record{record.String("a"), record.String("b"), record.String("c")}}, nil
	})
	reg.Register(registry.Type{ID: "wait", Inputs: []string{"a", "b"}, Outputs: []string{"a", "b"}}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return nodes.Wait{}, nil
	})
	reg.Register(registry.Type{ID: "sink0"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return collector{out: &out0}, nil
	})
	reg.Register(registry.Type{ID: "sink1"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return collector{out: &out1}, nil
	})

	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "f", Type: "fast"},
			{ID: "s", Type: "slow"},
			{ID: "w", Type: "wait"},
			{ID: "o0", Type: "sink0"},
			{ID: "o1", Type: "sink1"},
		},
		Edges: []workflow.EdgeDef{
			{From: "f", To: "w", ToPort: "a"},
			{From: "s", To: "w", ToPort: "b"},
			{From: "w", FromPort: "a", To: "o0"},
			{From: "w", FromPort: "b", To: "o1"},
		},
	}

	require.NoError(t, Run(context.Background(), def, reg, nil, Options{}))
	assert.Equal(t, []record.Record{record.Number(1), record.Number(2), record.Number(3)}, out0)
	assert.Equal(t, []record.Record{record.String("a"), record.String("b"), record.String("c")}, out1)
}

// slowSource paces its emissions so the other Wait input is always ahead.
type slowSource struct{ values []record.Record }

func (s slowSource) Run(_ context.Context, _ []nodes.In, outputs []nodes.Out) error {
	for _, v := range s.values {
		time.Sleep(5 * time.Millisecond)
		outputs[0] <- v
	}
	return nil
}

// countingSource records how many sends have completed, so a test can
// observe how far ahead of a stalled consumer a producer can run.
type countingSource struct {
	total int
	sent  *atomic.Int64
}

func (c countingSource) Run(_ context.Context, _ []nodes.In, outputs []nodes.Out) error {
	for i := 0; i < c.total; i++ {
		outputs[0] <- record.Number(float64(i))
		c.sent.Add(1)
	}
	return nil
}

// gatedSink refuses to read anything until its gate opens.
type gatedSink struct {
	gate <-chan struct{}
	out  *[]record.Record
}

func (g gatedSink) Run(_ context.Context, inputs []nodes.In, _ []nodes.Out) error {
	<-g.gate
	for v := range inputs[0] {
		*g.out = append(*g.out, v)
	}
	return nil
}

func TestBackpressureBoundsProducerAdvance(t *testing.T) {
	var sent atomic.Int64
	var out []record.Record
	gate := make(chan struct{})
	const total = 100
	const capacity = 2

	reg := registry.New()
	reg.Register(registry.Type{ID: "src"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return countingSource{total: total, sent: &sent}, nil
	})
	reg.Register(registry.Type{ID: "sink"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return gatedSink{gate: gate, out: &out}, nil
	})

	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "a", Type: "src"},
			{ID: "b", Type: "sink"},
		},
		Edges: []workflow.EdgeDef{{From: "a", To: "b"}},
	}

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), def, reg, nil, Options{EdgeCapacity: capacity})
	}()

	// With the sink stalled, the producer can fill at most the edge's
	// three bounded segments (raw, tap, broadcast feed) plus the records
	// the helper goroutines hold in hand.
	time.Sleep(100 * time.Millisecond)
	advance := sent.Load()
	assert.LessOrEqual(t, advance, int64(3*capacity+4), "producer ran too far ahead of a stalled consumer")
	assert.Less(t, advance, int64(total))

	close(gate)
	require.NoError(t, <-done)
	assert.Len(t, out, total)
}

func TestScenarioSubWorkflowReturn(t *testing.T) {
	// Outer: Manual -> ExecuteWorkflow(path=sub) -> sink; the sub
	// workflow sets {x:10} and returns {{x}}, so the outer sink sees the
	// number 10 — the capture protocol preserves the native type.
	dir := t.TempDir()
	subPath := filepath.Join(dir, "sub.yaml")
	sub := `
nodes:
  - id: trigger
    type: ChildWorkflowTrigger
  - id: set
    type: SetData
    config:
      value:
        x: 10
  - id: ret
    type: Return
    config:
      value: "{{x}}"
edges:
  - from: trigger
    to: set
  - from: set
    to: ret
`
	require.NoError(t, os.WriteFile(subPath, []byte(sub), 0o644))

	var out []record.Record
	reg := NewRegistry(nil, nil, 8)
	reg.Register(registry.Type{ID: "collect"}, func(interface{}, registry.Secrets) (nodes.Node, error) {
		return collector{out: &out}, nil
	})

	def := workflow.Definition{
		Nodes: []workflow.NodeDef{
			{ID: "m", Type: "ManualTrigger"},
			{ID: "exec", Type: "ExecuteWorkflow", Config: map[string]interface{}{"path": subPath}},
			{ID: "c", Type: "collect"},
		},
		Edges: []workflow.EdgeDef{
			{From: "m", To: "exec"},
			{From: "exec", To: "c"},
		},
	}

	require.NoError(t, Run(context.Background(), def, reg, nil, Options{}))
	require.Len(t, out, 1)
	assert.Equal(t, record.Number(10), out[0])
}
