// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package workflow

import "sort"

// Graph is a validated, immutable view of a workflow definition with
// forward and reverse adjacency. Construct one via Definition.IntoGraph.
type Graph struct {
	nodes   map[NodeId]Node
	forward map[NodeId][]Edge
	reverse map[NodeId][]Edge
	order   []NodeId
}

func newGraph(d *Definition) *Graph {
	g := &Graph{
		nodes:   make(map[NodeId]Node, len(d.Nodes)),
		forward: make(map[NodeId][]Edge, len(d.Nodes)),
		reverse: make(map[NodeId][]Edge, len(d.Nodes)),
	}
	for id, n := range d.Nodes {
		g.nodes[id] = n
	}
	for _, e := range d.Edges {
		g.forward[e.From] = append(g.forward[e.From], e)
		g.reverse[e.To] = append(g.reverse[e.To], e)
	}
	return g
}

// Validate re-checks the structural invariants IntoGraph established.
// Callers that hold graphs across cache or serialization boundaries use it
// as a cheap guard before executing.
func (g *Graph) Validate() error {
	if cycle := g.findCycle(); cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node stored under id.
func (g *Graph) Node(id NodeId) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the node map. Callers must not mutate it.
func (g *Graph) Nodes() map[NodeId]Node { return g.nodes }

// Outgoing returns the edges leaving id.
func (g *Graph) Outgoing(id NodeId) []Edge { return g.forward[id] }

// Incoming returns the edges arriving at id.
func (g *Graph) Incoming(id NodeId) []Edge { return g.reverse[id] }

// Roots returns the nodes with no incoming edges, in ascending id order.
func (g *Graph) Roots() []NodeId {
	var roots []NodeId
	for _, id := range g.TopologicalOrder() {
		if len(g.reverse[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// TopologicalOrder returns the nodes in a dependency-respecting order.
// Among nodes that are simultaneously ready it picks the smallest id, so
// the order is identical across runs for the same graph. The slice is
// computed once and must not be mutated.
func (g *Graph) TopologicalOrder() []NodeId {
	if g.order != nil {
		return g.order
	}

	indegree := make(map[NodeId]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.reverse[id])
	}

	var ready []NodeId
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]NodeId, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pick the smallest ready id. Graphs are small enough that a
		// linear scan beats maintaining a heap.
		min := 0
		for i := 1; i < len(ready); i++ {
			if ready[i].Compare(ready[min]) < 0 {
				min = i
			}
		}
		id := ready[min]
		ready[min] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]

		order = append(order, id)
		for _, e := range g.forward[id] {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}

	g.order = order
	return order
}

// Descendants returns every node reachable from start, excluding start
// itself.
func (g *Graph) Descendants(start NodeId) map[NodeId]struct{} {
	seen := make(map[NodeId]struct{})
	stack := make([]NodeId, 0, len(g.forward[start]))
	for _, e := range g.forward[start] {
		stack = append(stack, e.To)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		for _, e := range g.forward[id] {
			stack = append(stack, e.To)
		}
	}
	return seen
}

// findCycle runs a depth-first search over the edge set and returns the
// first cycle found as a node path with the entry node repeated at the end,
// or nil if the graph is acyclic. Start nodes are visited in ascending id
// order so the reported cycle is stable.
func (g *Graph) findCycle() []NodeId {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[NodeId]int, len(g.nodes))

	starts := make([]NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		starts = append(starts, id)
	}
	sortNodeIds(starts)

	var path []NodeId
	var visit func(id NodeId) []NodeId
	visit = func(id NodeId) []NodeId {
		state[id] = inStack
		path = append(path, id)
		for _, e := range g.forward[id] {
			switch state[e.To] {
			case inStack:
				// Trim the path to the cycle entry and close it.
				for i, p := range path {
					if p == e.To {
						cycle := append([]NodeId{}, path[i:]...)
						return append(cycle, e.To)
					}
				}
			case unvisited:
				if cycle := visit(e.To); cycle != nil {
					return cycle
				}
			}
		}
		state[id] = done
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range starts {
		if state[id] != unvisited {
			continue
		}
		path = path[:0]
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

func sortNodeIds(ids []NodeId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
}
