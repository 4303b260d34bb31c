package engine

import "github.com/flowgraph/runtime/internal/record"

// EventKind discriminates an Event's payload, mirroring the lifecycle a
// workflow run and its edges go through.
type EventKind int

const (
	WorkflowStart EventKind = iota
	WorkflowFinish
	NodeStart
	NodeFinish
	NodeError
	EdgeData
)

// Event is one entry in the execution event stream. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	NodeID string
	Err    error

	EdgeFrom string
	EdgeTo   string
	Value    record.Record
}
