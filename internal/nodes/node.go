// Package nodes implements the stream-operator node library: triggers,
// sinks, control flow, and integrations. Every node satisfies Node, the
// single contract the executor drives them through.
package nodes

import (
	"context"

	"github.com/flowgraph/runtime/internal/record"
)

// In is a node's view of one input port: a receive-only stream that
// closes when every upstream sender (after fan-in merging) has finished.
type In <-chan record.Record

// Out is a node's view of one output port: a send-only stream the
// executor fans out to every downstream edge. The node must close none
// of these itself — Run returning is what signals end-of-stream; the
// executor closes the underlying channel once Run returns.
type Out chan<- record.Record

// Node is the single operation every stream operator implements. Run
// owns inputs and outputs for its lifetime: it may range over any input,
// send on any output, and must return (rather than block forever) once
// every input it cares about has closed. Run must not perform a
// blocking syscall directly — nodes that need one (HTTP, SMTP, a queue
// publish) run it under ctx and respect cancellation.
type Node interface {
	Run(ctx context.Context, inputs []In, outputs []Out) error
}

// OutputPortCounter is implemented by nodes whose output arity depends
// on their configuration rather than on their registered type metadata.
// Switch exposes one port per configured case plus the default, which
// the static registry entry cannot know; the executor consults this
// when sizing the dense output slice it hands to Run.
type OutputPortCounter interface {
	OutputPorts() int
}

// A node's on_error policy is passed neither to its factory nor to Run;
// the executor applies it. Under ErrorPolicyContinue the executor
// publishes the error Run returned as a NodeError event and does not
// fail the run, but the node has already returned, so records after the
// failing one are not processed. ErrorPolicyStop (the default) and
// ErrorPolicyRetry both propagate whatever Run returns; the only
// retrying is what a node does on its own, such as HttpRequest's
// RetryCount.
