// Package registry maps a workflow document's node_type strings to
// concrete nodes.Node constructors, and exposes the static metadata
// (ports, property schema, category) that a document loader and a UI
// need to validate and render a workflow before it ever runs.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/runtime/internal/nodes"
)

// Property describes one entry in a node type's configuration schema.
type Property struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string|number|bool|record|expression
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Type is the static description of a node_type registered in the
// factory: enough for a document loader to resolve named ports and for
// a UI to render a palette entry.
type Type struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Category string     `json:"category"`
	Inputs   []string   `json:"inputs"`
	Outputs  []string   `json:"outputs"`
	Props    []Property `json:"properties"`
}

// outputIndex resolves a named output port to its dense index.
// Integer-looking port names are not handled here; see resolvePort.
func (t Type) outputIndex(name string) (int, bool) {
	for i, n := range t.Outputs {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (t Type) inputIndex(name string) (int, bool) {
	for i, n := range t.Inputs {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Secrets is the in-memory secret_id → secret_value map the host hands
// to the factory; the registry never persists or logs it.
type Secrets map[string]string

// Factory constructs a node instance of its registered type from a
// node's raw config (decoded from the document's per-node config
// record) and the secrets available to it.
type Factory func(config interface{}, secrets Secrets) (nodes.Node, error)

type entry struct {
	typ     Type
	factory Factory
}

// Registry is the node-type registry: type metadata plus constructors,
// keyed by node_type string.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty registry. Use Standard() for the full built-in
// node library.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds (or replaces) a node type and its constructor.
func (r *Registry) Register(typ Type, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typ.ID] = entry{typ: typ, factory: factory}
}

// Lookup returns the static metadata for a node_type.
func (r *Registry) Lookup(nodeType string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	return e.typ, ok
}

// Create builds a node instance for nodeType with the given config and
// secrets.
func (r *Registry) Create(nodeType string, config interface{}, secrets Secrets) (nodes.Node, error) {
	r.mu.RLock()
	e, ok := r.entries[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown node type %q", nodeType)
	}
	n, err := e.factory(config, secrets)
	if err != nil {
		return nil, fmt.Errorf("registry: build %q: %w", nodeType, err)
	}
	return n, nil
}

// ResolveOutputPort resolves a from_port string (name or integer index)
// against nodeType's declared outputs. An empty string resolves to 0.
func (r *Registry) ResolveOutputPort(nodeType, port string) (int, error) {
	r.mu.RLock()
	e, ok := r.entries[nodeType]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("registry: unknown node type %q", nodeType)
	}
	return resolvePort(port, e.typ.outputIndex)
}

// ResolveInputPort resolves a to_port string the same way, against
// nodeType's declared inputs.
func (r *Registry) ResolveInputPort(nodeType, port string) (int, error) {
	r.mu.RLock()
	e, ok := r.entries[nodeType]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("registry: unknown node type %q", nodeType)
	}
	return resolvePort(port, e.typ.inputIndex)
}

func resolvePort(port string, named func(string) (int, bool)) (int, error) {
	if port == "" {
		return 0, nil
	}
	if idx, ok := named(port); ok {
		return idx, nil
	}
	var n int
	if _, err := fmt.Sscanf(port, "%d", &n); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("registry: unknown port %q", port)
}

// Types returns every registered type's metadata, sorted by ID, for a
// UI palette or a docs generator.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
