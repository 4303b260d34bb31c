// Package engine is the Stream Executor: it turns a resolved workflow
// graph into a channel topology, spawns one task per node plus the
// tap/merge/broadcast helper tasks that wire ports together, drives them
// to completion, and reports the first surfaced error.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/runtime/internal/metrics"
	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/tracing"
	"github.com/flowgraph/runtime/internal/workflow"
)

// DefaultEdgeCapacity is the bounded channel size for every edge, the
// sole flow-control mechanism: a slow consumer stalls its producer and
// transitively everything upstream of it.
const DefaultEdgeCapacity = 100

// captureSinkID names the synthetic node a sub-workflow invocation tees
// its Return output into; see Options.CaptureFrom.
const captureSinkID = "__capture__"

// Options configures one Run.
type Options struct {
	// EdgeCapacity overrides DefaultEdgeCapacity; 0 means use the default.
	EdgeCapacity int

	// DebugLimit caps how many records each edge tap forwards downstream;
	// 0 means unlimited. The upstream is still drained past the limit so
	// producers never stall on a throttled edge.
	DebugLimit int

	// Bus receives NodeStart/NodeFinish/NodeError/EdgeData/WorkflowStart/
	// WorkflowFinish events. Nil disables eventing entirely.
	Bus *EventBus

	// Inject adds one record, then end-of-stream, as an extra fan-in
	// source on a node's input port 0; if that port also has real edges,
	// the injected record is merged with theirs in no fixed order. This
	// is how a parent workflow feeds a child's trigger node (§4.2).
	Inject map[string]record.Record

	// CaptureFrom, when non-empty, tees the named node's output port 0
	// into a synthetic discard sink under captureSinkID; callers that set
	// this are expected to have subscribed to Bus beforehand and to read
	// off the EdgeData events targeting that sink (the capture-edge
	// protocol used by ExecuteWorkflow and Loop).
	CaptureFrom string

	// Metrics, when non-nil, records one workflow-execution observation
	// for this Run plus one node-execution observation per node.
	Metrics *metrics.Metrics

	// WorkflowID and TriggerType label Metrics observations; both are
	// optional and default to "unknown".
	WorkflowID  string
	TriggerType string
}

// Run builds the channel topology for def, spawns every node task, and
// blocks until all of them return. It returns the first node error
// observed, or nil if every node finished cleanly.
func Run(ctx context.Context, def workflow.Definition, reg *registry.Registry, secrets registry.Secrets, opts Options) error {
	cap := opts.EdgeCapacity
	if cap <= 0 {
		cap = DefaultEdgeCapacity
	}

	workflowID := opts.WorkflowID
	if workflowID == "" {
		workflowID = "unknown"
	}
	triggerType := opts.TriggerType
	if triggerType == "" {
		triggerType = "unknown"
	}

	instances := make(map[string]nodes.Node, len(def.Nodes))
	counts := make(map[string]portCounts, len(def.Nodes))
	nodeTypes := make(map[string]string, len(def.Nodes))
	errorPolicies := make(map[string]workflow.ErrorPolicy, len(def.Nodes))
	for _, n := range def.Nodes {
		inst, err := reg.Create(n.Type, n.Config, secrets)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		instances[n.ID] = inst
		nodeTypes[n.ID] = n.Type
		errorPolicies[n.ID] = n.OnError
		typ, _ := reg.Lookup(n.Type)
		c := portCounts{in: max(1, len(typ.Inputs)), out: max(1, len(typ.Outputs))}
		if pc, ok := inst.(nodes.OutputPortCounter); ok {
			c.out = max(c.out, pc.OutputPorts())
		}
		counts[n.ID] = c
	}

	edges, err := workflow.Resolve(def, reg)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if opts.CaptureFrom != "" {
		instances[captureSinkID] = &discardSink{}
		counts[captureSinkID] = portCounts{in: 1, out: 0}
		edges = append(edges, workflow.ResolvedEdge{From: opts.CaptureFrom, FromPort: 0, To: captureSinkID, ToPort: 0})
	}

	// An unknown injection target would register an orphan topology node
	// no task ever drives, leaving its helper goroutines waiting forever.
	for nodeID := range opts.Inject {
		if _, ok := instances[nodeID]; !ok {
			return fmt.Errorf("engine: inject target %q is not a node in the workflow", nodeID)
		}
	}

	b := newBuilder(cap, opts.DebugLimit, opts.Bus)
	for id := range instances {
		b.ensureNode(id, counts[id])
	}
	for _, e := range edges {
		b.wireEdge(e)
	}
	for nodeID, rec := range opts.Inject {
		b.injectInto(nodeID, rec)
	}
	b.finalize()

	if opts.Bus != nil {
		opts.Bus.Publish(Event{Kind: WorkflowStart})
	}
	if opts.Metrics != nil {
		opts.Metrics.IncActiveWorkflowExecutions(workflowID, triggerType)
	}
	runStart := time.Now()
	executionID := uuid.NewString()

	firstErr := tracing.TraceWorkflowExecution(ctx, workflowID, executionID, func(ctx context.Context) error {
		var (
			mu       sync.Mutex
			firstErr error
			wg       sync.WaitGroup
		)
		for id, inst := range instances {
			id, inst := id, inst
			ins := b.inputs[id]
			outs := b.outputSenders(id)
			closers := b.outputChans[id]
			nodeType := nodeTypes[id]

			wg.Add(1)
			go func() {
				defer wg.Done()
				if opts.Bus != nil {
					opts.Bus.Publish(Event{Kind: NodeStart, NodeID: id})
				}
				nodeStart := time.Now()
				_, runErr := tracing.TraceNodeExecution(ctx, id, nodeType, func(ctx context.Context) (interface{}, error) {
					return nil, inst.Run(ctx, ins, outs)
				})
				for _, ch := range closers {
					close(ch)
				}
				if runErr != nil {
					if opts.Bus != nil {
						opts.Bus.Publish(Event{Kind: NodeError, NodeID: id, Err: runErr})
					}
					if opts.Metrics != nil {
						opts.Metrics.RecordNodeExecution(workflowID, nodeType, "error", time.Since(nodeStart).Seconds())
					}
					// Per spec §4.1/§7.3: on_error "continue" swallows the
					// node's error at the workflow level (it is still
					// published as a NodeError event above) rather than
					// stopping the run. "stop" (the default) and "retry"
					// (node-specific; a no-op here for nodes that don't
					// implement it themselves) both propagate.
					if errorPolicies[id] != workflow.ErrorPolicyContinue {
						mu.Lock()
						if firstErr == nil {
							firstErr = fmt.Errorf("node %s: %w", id, runErr)
						}
						mu.Unlock()
					}
					return
				}
				if opts.Metrics != nil {
					opts.Metrics.RecordNodeExecution(workflowID, nodeType, "completed", time.Since(nodeStart).Seconds())
				}
				if opts.Bus != nil {
					opts.Bus.Publish(Event{Kind: NodeFinish, NodeID: id})
				}
			}()
		}

		wg.Wait()
		b.waitHelpers()
		return firstErr
	})

	if opts.Bus != nil {
		opts.Bus.Publish(Event{Kind: WorkflowFinish})
	}
	if opts.Metrics != nil {
		opts.Metrics.DecActiveWorkflowExecutions(workflowID, triggerType)
		status := "completed"
		if firstErr != nil {
			status = "error"
		}
		opts.Metrics.RecordWorkflowExecution(workflowID, triggerType, status, time.Since(runStart).Seconds())
	}

	return firstErr
}

// discardSink is the capture-edge protocol's accumulator target: it
// never inspects its input, it exists purely so the tap feeding it
// publishes EdgeData events an ExecuteWorkflow/Loop caller can observe.
type discardSink struct{}

func (d *discardSink) Run(_ context.Context, inputs []nodes.In, _ []nodes.Out) error {
	if len(inputs) == 0 {
		return nil
	}
	for range inputs[0] {
	}
	return nil
}
