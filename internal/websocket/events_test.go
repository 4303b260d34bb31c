package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/engine"
	"github.com/flowgraph/runtime/internal/record"
)

func TestEncodeEdgeDataIncludesValue(t *testing.T) {
	data, err := encode(engine.Event{
		Kind:     engine.EdgeData,
		EdgeFrom: "a",
		EdgeTo:   "b",
		Value:    record.Map(map[string]record.Record{"x": record.Number(1)}),
	})
	require.NoError(t, err)

	var w map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "edge_data", w["type"])
	assert.Equal(t, "a", w["edge_from"])
	assert.Equal(t, "b", w["edge_to"])
	assert.Equal(t, map[string]interface{}{"x": 1.0}, w["value"])
}

func TestEncodeNodeErrorIncludesMessage(t *testing.T) {
	data, err := encode(engine.Event{Kind: engine.NodeError, NodeID: "n1", Err: assert.AnError})
	require.NoError(t, err)

	var w map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "node_error", w["type"])
	assert.Equal(t, "n1", w["node_id"])
	assert.Equal(t, assert.AnError.Error(), w["error"])
}

func TestBridgeForwardsEventsUntilStop(t *testing.T) {
	bus := engine.NewEventBus()
	hub := NewHub(nil)
	hubStop := make(chan struct{})
	defer close(hubStop)
	go hub.Run(hubStop)

	c := &Client{ID: "c1", Hub: hub, Send: make(chan []byte, 8)}
	hub.Register(c)
	time.Sleep(10 * time.Millisecond)

	bridgeStop := make(chan struct{})
	go Bridge(bus, hub, bridgeStop)
	defer close(bridgeStop)

	bus.Publish(engine.Event{Kind: engine.WorkflowStart})

	select {
	case msg := <-c.Send:
		var w map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &w))
		assert.Equal(t, "workflow_start", w["type"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bridged event")
	}
}
