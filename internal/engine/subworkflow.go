package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/flowgraph/runtime/internal/metrics"
	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/registry"
	"github.com/flowgraph/runtime/internal/workflow"
)

// DocumentLoader reads and parses the workflow document at path. The
// host process supplies this (filesystem, embedded bundle, or a
// persistence-layer lookup keyed by path) — the engine itself has no
// opinion on where documents live.
type DocumentLoader func(path string) (workflow.Definition, error)

// FileLoader is the simplest DocumentLoader: it reads path off disk and
// parses it as a workflow document.
func FileLoader(reg *registry.Registry) DocumentLoader {
	return func(path string) (workflow.Definition, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return workflow.Definition{}, fmt.Errorf("engine: read %s: %w", path, err)
		}
		result, err := workflow.Load(data, reg)
		if err != nil {
			return workflow.Definition{}, fmt.Errorf("engine: load %s: %w", path, err)
		}
		return result.Definition, nil
	}
}

// NewRegistry builds the complete built-in node library, including
// ExecuteWorkflow and Loop: the one pair of node types the registry
// package cannot construct on its own, because their factory needs a
// way to run another workflow, and Run lives in this package (which
// already imports registry — the dependency can't point the other
// way). m may be nil to skip Prometheus wiring.
func NewRegistry(m *metrics.Metrics, secrets registry.Secrets, maxDepth int) *registry.Registry {
	reg := registry.StandardWithMetrics(m)
	reg.RegisterSubWorkflowNodes(NewRunner(reg, secrets, FileLoader(reg), maxDepth))
	return reg
}

// NewRunner builds the nodes.WorkflowRunner that backs ExecuteWorkflow
// and Loop: loading a document, finding its trigger and Return nodes,
// injecting the caller's record, running it to completion, and
// harvesting the last value the Return node emitted — the
// child-workflow capture protocol from spec §4.2/§6. maxDepth guards
// against runaway self-recursion: once the nesting depth reaches it, the
// runner returns an error without calling load.
func NewRunner(reg *registry.Registry, secrets registry.Secrets, load DocumentLoader, maxDepth int) nodes.WorkflowRunner {
	var run nodes.WorkflowRunner
	run = func(ctx context.Context, path string, initial record.Record) (record.Record, error) {
		depth := depthFromContext(ctx)
		if depth >= maxDepth {
			return record.Null, fmt.Errorf("engine: sub-workflow depth limit %d exceeded at %s", maxDepth, path)
		}

		def, err := load(path)
		if err != nil {
			return record.Null, err
		}

		triggerID, ok := findTrigger(def, reg)
		if !ok {
			return record.Null, fmt.Errorf("engine: %s: no trigger node found", path)
		}
		returnID, hasReturn := findReturn(def)

		bus := NewEventBus()
		sub, unsubscribe := bus.Subscribe(4096)
		defer unsubscribe()

		captured := make(chan record.Record, 1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			var last record.Record
			have := false
			for ev := range sub {
				if ev.Kind == EdgeData && ev.EdgeTo == captureSinkID {
					last = ev.Value
					have = true
				}
			}
			if have {
				captured <- last
			}
			close(captured)
		}()

		opts := Options{Bus: bus, Inject: map[string]record.Record{triggerID: initial}}
		if hasReturn {
			opts.CaptureFrom = returnID
		}

		childCtx := withDepth(ctx, depth+1)
		runErr := Run(childCtx, def, reg, secrets, opts)
		unsubscribe()
		<-done

		result := record.Null
		if v, ok := <-captured; ok {
			result = v
		}
		return result, runErr
	}
	return run
}

type depthKey struct{}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(depthKey{}).(int); ok {
		return v
	}
	return 0
}

// findTrigger returns the first node whose registered type declares no
// input ports (a trigger, per §3's node-type metadata) — the node a
// parent workflow injects its record into.
func findTrigger(def workflow.Definition, reg *registry.Registry) (string, bool) {
	for _, n := range def.Nodes {
		typ, ok := reg.Lookup(n.Type)
		if ok && len(typ.Inputs) == 0 {
			return n.ID, true
		}
	}
	if len(def.Nodes) > 0 {
		return def.Nodes[0].ID, true
	}
	return "", false
}

// findReturn returns the first "Return"-typed node's ID, if any.
func findReturn(def workflow.Definition) (string, bool) {
	for _, n := range def.Nodes {
		if n.Type == "Return" {
			return n.ID, true
		}
	}
	return "", false
}
