package engine

import (
	"sync"

	"github.com/flowgraph/runtime/internal/nodes"
	"github.com/flowgraph/runtime/internal/record"
	"github.com/flowgraph/runtime/internal/workflow"
)

// portCounts is how many dense input/output ports a node instance
// exposes, taken from its registry.Type (or a fixed value for the
// synthetic capture sink).
type portCounts struct {
	in, out int
}

type nodeIO struct {
	outDownstream map[int][]chan record.Record // from_port -> one raw channel per downstream edge
	inSources     map[int][]chan record.Record // to_port -> one tap/inject channel per source
}

// builder assembles the channel topology for one Run: every edge and
// injection registers itself here, then finalize() materializes the
// dense per-node input/output slices the node tasks actually receive.
type builder struct {
	cap        int
	debugLimit int
	bus        *EventBus

	nodes   map[string]*nodeIO
	counts  map[string]portCounts
	helpers sync.WaitGroup

	inputs      map[string][]nodes.In
	outputChans map[string][]chan record.Record
}

func newBuilder(capacity, debugLimit int, bus *EventBus) *builder {
	return &builder{
		cap:         capacity,
		debugLimit:  debugLimit,
		bus:         bus,
		nodes:       make(map[string]*nodeIO),
		counts:      make(map[string]portCounts),
		inputs:      make(map[string][]nodes.In),
		outputChans: make(map[string][]chan record.Record),
	}
}

func (b *builder) node(id string) *nodeIO {
	io, ok := b.nodes[id]
	if !ok {
		io = &nodeIO{outDownstream: make(map[int][]chan record.Record), inSources: make(map[int][]chan record.Record)}
		b.nodes[id] = io
	}
	return io
}

// ensureNode registers id with its port counts so finalize always
// materializes it, even if no edge ever touches it.
func (b *builder) ensureNode(id string, counts portCounts) {
	b.node(id)
	b.counts[id] = counts
}

func (b *builder) wireEdge(e workflow.ResolvedEdge) {
	raw := make(chan record.Record, b.cap)
	tap := make(chan record.Record, b.cap)
	b.node(e.From).outDownstream[e.FromPort] = append(b.node(e.From).outDownstream[e.FromPort], raw)
	b.node(e.To).inSources[e.ToPort] = append(b.node(e.To).inSources[e.ToPort], tap)

	b.helpers.Add(1)
	go func() {
		defer b.helpers.Done()
		runTap(raw, tap, e.From, e.To, b.bus, b.debugLimit)
	}()
}

// injectInto feeds rec into nodeID's input port 0 as an extra fan-in
// source, then closes — used to push a record into a child workflow's
// trigger node.
func (b *builder) injectInto(nodeID string, rec record.Record) {
	ch := make(chan record.Record, 1)
	ch <- rec
	close(ch)
	io := b.node(nodeID)
	io.inSources[0] = append(io.inSources[0], ch)
}

// finalize materializes dense input/output slices for every registered
// node: output ports get a broadcast task fanning into their downstream
// edges (or draining if none), input ports get a direct passthrough, a
// closed empty channel, or a merge task, depending on fan-in count.
func (b *builder) finalize() {
	for id, io := range b.nodes {
		counts := b.counts[id]
		if counts.out == 0 && counts.in == 0 {
			counts = portCounts{in: 1, out: 1}
		}
		// Edges may address ports beyond the type's declared list —
		// Switch grows one output per configured case, Wait and Union
		// take as many inputs as the graph wires. Every wired port must
		// get a materialized channel or its tap task never terminates.
		for p := range io.outDownstream {
			if p+1 > counts.out {
				counts.out = p + 1
			}
		}
		for p := range io.inSources {
			if p+1 > counts.in {
				counts.in = p + 1
			}
		}

		outs := make([]chan record.Record, counts.out)
		for p := 0; p < counts.out; p++ {
			in := make(chan record.Record, b.cap)
			outs[p] = in
			downs := io.outDownstream[p]
			b.helpers.Add(1)
			go func(in chan record.Record, downs []chan record.Record) {
				defer b.helpers.Done()
				runBroadcast(in, downs)
			}(in, downs)
		}
		b.outputChans[id] = outs

		ins := make([]nodes.In, counts.in)
		for p := 0; p < counts.in; p++ {
			ins[p] = b.materializeInput(io.inSources[p])
		}
		b.inputs[id] = ins
	}
}

func (b *builder) materializeInput(sources []chan record.Record) nodes.In {
	switch len(sources) {
	case 0:
		ch := make(chan record.Record)
		close(ch)
		return nodes.In(ch)
	case 1:
		return nodes.In(sources[0])
	default:
		merged := make(chan record.Record, b.cap)
		var wg sync.WaitGroup
		wg.Add(len(sources))
		for _, s := range sources {
			s := s
			b.helpers.Add(1)
			go func() {
				defer b.helpers.Done()
				defer wg.Done()
				for v := range s {
					merged <- v
				}
			}()
		}
		go func() {
			wg.Wait()
			close(merged)
		}()
		return nodes.In(merged)
	}
}

// outputSenders converts the node's raw output channels to the Out view
// Run hands to the node.
func (b *builder) outputSenders(id string) []nodes.Out {
	chans := b.outputChans[id]
	outs := make([]nodes.Out, len(chans))
	for i, ch := range chans {
		outs[i] = nodes.Out(ch)
	}
	return outs
}

func (b *builder) waitHelpers() { b.helpers.Wait() }

// runTap forwards every record from raw to tap, publishing an EdgeData
// event per record and honoring the debug record limit: records beyond
// the limit are read off raw (so the upstream never stalls) but not
// forwarded.
func runTap(raw <-chan record.Record, tap chan<- record.Record, from, to string, bus *EventBus, limit int) {
	count := 0
	for v := range raw {
		if bus != nil {
			bus.Publish(Event{Kind: EdgeData, EdgeFrom: from, EdgeTo: to, Value: v})
		}
		if limit <= 0 || count < limit {
			tap <- v
			count++
		}
	}
	close(tap)
}

// runBroadcast copies every record from in to each of outs in turn,
// preserving per-downstream FIFO order, then closes every downstream
// channel once in closes. With no downstream it simply drains and
// discards, as a sink's unused output port would.
func runBroadcast(in <-chan record.Record, outs []chan record.Record) {
	for v := range in {
		for _, o := range outs {
			o <- v
		}
	}
	for _, o := range outs {
		close(o)
	}
}
