package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadResult is what Load returns: the parsed definition plus the
// static analysis a UI or CLI wants before ever running the workflow.
type LoadResult struct {
	Definition Definition

	// Order is a topological ordering of node IDs derived from the
	// resolved edges (Kahn's algorithm): every node appears after all
	// of its upstream dependencies. A graph with a cycle still resolves
	// (cycles are legal — e.g. a Wait node round-tripping control back
	// through the rest of the graph would not, but nothing in this
	// spec's node set forms a structural cycle through edges alone, and
	// nothing prevents one structurally); nodes that cannot be ordered
	// acyclically are appended in declaration order at the end.
	Order []string

	// Unreachable lists node IDs nothing targets via an edge — a
	// dry-run warning, not a load error: an unused sink is legal, just
	// inert.
	Unreachable []string
}

// Load parses a YAML-superset-of-JSON workflow document, resolves every
// edge's named ports against resolver, and performs the load-time
// validation pass (§7.1): malformed document, duplicate node IDs, edges
// to unknown nodes, and unknown named ports are all reported here,
// before any node is instantiated.
func Load(data []byte, resolver PortResolver) (LoadResult, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return LoadResult{}, fmt.Errorf("workflow: parse document: %w", err)
	}

	edges, err := Resolve(def, resolver)
	if err != nil {
		return LoadResult{}, err
	}

	return LoadResult{
		Definition:  def,
		Order:       topologicalOrder(def, edges),
		Unreachable: unreachableNodes(def, edges),
	}, nil
}

// topologicalOrder computes a dependency order over the node set using
// Kahn's algorithm on the resolved edge list. It is pure static analysis
// on data Resolve already validated — no node is instantiated and
// nothing runs.
func topologicalOrder(def Definition, edges []ResolvedEdge) []string {
	indegree := make(map[string]int, len(def.Nodes))
	adj := make(map[string][]string, len(def.Nodes))
	declOrder := make([]string, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		indegree[n.ID] = 0
		declOrder = append(declOrder, n.ID)
	}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	var queue []string
	for _, id := range declOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(def.Nodes))
	visited := make(map[string]bool, len(def.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	// Anything left unvisited sits on a cycle; append in declaration
	// order rather than drop it, so Order always covers every node.
	for _, id := range declOrder {
		if !visited[id] {
			order = append(order, id)
		}
	}
	return order
}

// unreachableNodes reports every node ID no edge targets.
func unreachableNodes(def Definition, edges []ResolvedEdge) []string {
	targeted := make(map[string]bool, len(edges))
	for _, e := range edges {
		targeted[e.To] = true
	}
	var out []string
	for _, n := range def.Nodes {
		if !targeted[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}
