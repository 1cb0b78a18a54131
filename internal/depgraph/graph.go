// Package depgraph provides the dependency-graph utilities of §4.2:
// deterministic topological ordering, forward reachability, and the
// per-edge condition flags the queue uses to decide whether a case is
// ready, still pending on a dependency, or doomed to skip.
//
// Cycle validation is delegated to hashicorp/terraform's dag package,
// the same AcyclicGraph the teacher's config/config_graph.go builds
// over HCL variable vertices (Add/Connect/Validate); everything else
// here is self-contained: topological order is Kahn's algorithm per the
// explicit algorithm choice in spec, reachability a depth-first walk.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/hashicorp/terraform/dag"

	"github.com/gruntwork-io/canary/internal/errors"
)

// Node is anything with a stable id and a list of dependency ids. A
// TestCase satisfies this directly.
type Node interface {
	NodeID() string
	DependencyIDs() []string
}

// idVertex adapts a plain string id to dag.Vertex so we can reuse the
// teacher's AcyclicGraph for cycle validation without copying cases
// into the graph.
type idVertex string

// basicEdge is the same minimal dag.Edge implementation
// config/config_graph.go defines locally; duplicated here rather than
// imported since it is unexported in the teacher's package.
type basicEdge struct {
	S, T dag.Vertex
}

func (e *basicEdge) Hashcode() any      { return fmt.Sprintf("%v->%v", e.S, e.T) }
func (e *basicEdge) Source() dag.Vertex { return e.S }
func (e *basicEdge) Target() dag.Vertex { return e.T }

// ValidateAcyclic builds a dag.AcyclicGraph over the given nodes' ids
// and edges (dependency -> dependent) and returns an error if it
// contains a cycle.
func ValidateAcyclic(nodes []Node) error {
	var g dag.AcyclicGraph

	for _, n := range nodes {
		g.Add(idVertex(n.NodeID()))
	}

	for _, n := range nodes {
		for _, dep := range n.DependencyIDs() {
			g.Connect(&basicEdge{S: idVertex(dep), T: idVertex(n.NodeID())})
		}
	}

	return g.Validate()
}

// TopologicalOrder returns node ids in dependency order (a dependency
// always precedes its dependents) via Kahn's algorithm, with ties
// broken by id so the result is deterministic for a fixed node set.
func TopologicalOrder(nodes []Node) ([]string, error) {
	inDegree := map[string]int{}
	dependents := map[string][]string{}
	known := map[string]bool{}

	for _, n := range nodes {
		known[n.NodeID()] = true
	}

	for _, n := range nodes {
		id := n.NodeID()
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}

		for _, dep := range n.DependencyIDs() {
			if !known[dep] {
				continue // dependency outside this node set; nothing to order against
			}

			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string

	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)

	order := make([]string, 0, len(nodes))

	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := append([]string(nil), dependents[id]...)
		sort.Strings(next)

		for _, d := range next {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(inDegree) {
		return nil, errors.New("dependency graph contains a cycle")
	}

	return order, nil
}

// ReachableFrom returns the forward transitive closure of id: every
// node that id (directly or indirectly) depends on, used when a user
// requests "run test X and its prerequisites".
func ReachableFrom(id string, nodes []Node) map[string]bool {
	byID := map[string]Node{}
	for _, n := range nodes {
		byID[n.NodeID()] = n
	}

	visited := map[string]bool{}

	var visit func(string)
	visit = func(cur string) {
		if visited[cur] {
			return
		}

		visited[cur] = true

		n, ok := byID[cur]
		if !ok {
			return
		}

		for _, dep := range n.DependencyIDs() {
			visit(dep)
		}
	}

	visit(id)
	delete(visited, id)

	return visited
}
