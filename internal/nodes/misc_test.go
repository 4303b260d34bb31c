package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/javascript"
	"github.com/flowgraph/runtime/internal/record"
)

func TestDelayForwardsAfterSleeping(t *testing.T) {
	in := closedChan(record.Number(1), record.Number(2))
	node := Delay{Duration: time.Millisecond}
	results := runNode(t, node, []In{in}, 1)
	assert.Equal(t, []record.Record{record.Number(1), record.Number(2)}, results[0])
}

func TestCodeEvaluatesScriptPerRecord(t *testing.T) {
	engine, err := javascript.NewEngine(nil)
	require.NoError(t, err)
	defer engine.Close()

	in := closedChan(record.Map(map[string]record.Record{"amount": record.Number(10)}))
	node := Code{
		Cfg:    CodeConfig{Lang: "javascript", Code: "var output = input.amount * 2;"},
		Engine: engine,
	}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)
	n, _ := results[0][0].Number()
	assert.Equal(t, 20.0, n)
}

func TestReturnForwardsVerbatimWhenNoValueConfigured(t *testing.T) {
	in := closedChan(record.Number(7))
	node := Return{}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)
	n, _ := results[0][0].Number()
	assert.Equal(t, 7.0, n)
}

func TestReturnRendersConfiguredValue(t *testing.T) {
	in := closedChan(record.Map(map[string]record.Record{"name": record.String("alice")}))
	node := Return{Value: record.String("hello {{name}}"), HasValue: true}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)
	s, _ := results[0][0].StringValue()
	assert.Equal(t, "hello alice", s)
}
