package websocket

import (
	"encoding/json"
	"time"

	"github.com/flowgraph/runtime/internal/engine"
)

// eventKindName maps engine.EventKind to the wire string clients see.
var eventKindName = map[engine.EventKind]string{
	engine.WorkflowStart:  "workflow_start",
	engine.WorkflowFinish: "workflow_finish",
	engine.NodeStart:      "node_start",
	engine.NodeFinish:     "node_finish",
	engine.NodeError:      "node_error",
	engine.EdgeData:       "edge_data",
}

// wireEvent is the JSON encoding of one engine.Event sent to observers.
type wireEvent struct {
	Type      string      `json:"type"`
	NodeID    string      `json:"node_id,omitempty"`
	Error     string      `json:"error,omitempty"`
	EdgeFrom  string      `json:"edge_from,omitempty"`
	EdgeTo    string      `json:"edge_to,omitempty"`
	Value     interface{} `json:"value,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func encode(ev engine.Event) ([]byte, error) {
	w := wireEvent{
		Type:      eventKindName[ev.Kind],
		NodeID:    ev.NodeID,
		EdgeFrom:  ev.EdgeFrom,
		EdgeTo:    ev.EdgeTo,
		Timestamp: time.Now().UTC(),
	}
	if ev.Err != nil {
		w.Error = ev.Err.Error()
	}
	if ev.Kind == engine.EdgeData {
		w.Value = ev.Value.Native()
	}
	return json.Marshal(w)
}

// Bridge subscribes to bus and forwards every event to hub as JSON,
// until bus's subscription channel closes (the run's unsubscribe was
// called) or stop fires. It is the glue the spec leaves as an
// implementation detail of "one or more subscribers may attach before
// run" (§6): the engine never imports this package, so a host that does
// not want a live WebSocket observer pays nothing for it.
func Bridge(bus *engine.EventBus, hub *Hub, stop <-chan struct{}) {
	sub, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := encode(ev)
			if err != nil {
				continue
			}
			hub.Broadcast(data)
		}
	}
}
