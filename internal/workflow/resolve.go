package workflow

import "fmt"

// PortResolver resolves a named or integer port string against a node
// type's declared input/output ports. Implemented by *registry.Registry;
// declared here (rather than imported) so this package has no dependency
// on the node registry.
type PortResolver interface {
	ResolveOutputPort(nodeType, port string) (int, error)
	ResolveInputPort(nodeType, port string) (int, error)
}

// Resolve validates every edge against the node set and port resolver,
// turning named ports into dense indices. It is the load-time
// validation pass: unknown node IDs and unknown named ports are
// reported here, before any node is instantiated.
func Resolve(def Definition, resolver PortResolver) ([]ResolvedEdge, error) {
	typeOf := make(map[string]string, len(def.Nodes))
	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if seen[n.ID] {
			return nil, fmt.Errorf("workflow: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		typeOf[n.ID] = n.Type
	}

	resolved := make([]ResolvedEdge, 0, len(def.Edges))
	for _, e := range def.Edges {
		fromType, ok := typeOf[e.From]
		if !ok {
			return nil, fmt.Errorf("workflow: edge references unknown node %q", e.From)
		}
		toType, ok := typeOf[e.To]
		if !ok {
			return nil, fmt.Errorf("workflow: edge references unknown node %q", e.To)
		}
		fromPort, err := resolver.ResolveOutputPort(fromType, e.FromPort)
		if err != nil {
			return nil, fmt.Errorf("workflow: edge %s: %w", e.String(), err)
		}
		toPort, err := resolver.ResolveInputPort(toType, e.ToPort)
		if err != nil {
			return nil, fmt.Errorf("workflow: edge %s: %w", e.String(), err)
		}
		resolved = append(resolved, ResolvedEdge{From: e.From, FromPort: fromPort, To: e.To, ToPort: toPort})
	}
	return resolved, nil
}

// Reachable reports, for diagnostics, every node ID that at least one
// edge targets; a node missing from the map has no incoming edge, which
// is legal and true of every trigger.
func Reachable(def Definition, edges []ResolvedEdge) map[string]bool {
	reached := make(map[string]bool, len(def.Nodes))
	for _, e := range edges {
		reached[e.To] = true
	}
	return reached
}
