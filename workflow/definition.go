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

import "encoding/json"

// Metadata carries descriptive fields of a workflow definition. None of it
// affects execution.
type Metadata struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Definition is the serializable form of a workflow as authored by clients.
// It is not guaranteed to be valid; IntoGraph performs all structural
// checks.
type Definition struct {
	Nodes    map[NodeId]Node `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	Metadata Metadata        `json:"metadata,omitempty"`
}

// ParseDefinition decodes a JSON workflow definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// AddNode inserts a node under a fresh id and returns the id.
func (d *Definition) AddNode(n Node) NodeId {
	if d.Nodes == nil {
		d.Nodes = make(map[NodeId]Node)
	}
	id := NewNodeId()
	d.Nodes[id] = n
	return id
}

// Connect appends an unlabeled edge between two nodes.
func (d *Definition) Connect(from, to NodeId) {
	d.Edges = append(d.Edges, Edge{From: from, To: to})
}

// ConnectLabeled appends a labeled edge, used for switch branches.
func (d *Definition) ConnectLabeled(from, to NodeId, label string) {
	d.Edges = append(d.Edges, Edge{From: from, To: to, Label: label})
}

// IntoGraph validates the definition and produces an immutable Graph.
// Checks run in order: node specs match their declared types, every edge
// endpoint exists, the edge set is acyclic, and every switch node has
// exactly two outgoing edges labeled "true" and "false".
func (d *Definition) IntoGraph() (*Graph, error) {
	for id, n := range d.Nodes {
		if err := validateNode(id, &n); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Edges {
		if _, ok := d.Nodes[e.From]; !ok {
			return nil, &UnknownNodeError{Node: e.From, Edge: e}
		}
		if _, ok := d.Nodes[e.To]; !ok {
			return nil, &UnknownNodeError{Node: e.To, Edge: e}
		}
	}

	g := newGraph(d)

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	for id, n := range d.Nodes {
		if !n.IsSwitch() {
			continue
		}
		if err := validateSwitchEdges(id, g.forward[id]); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func validateNode(id NodeId, n *Node) error {
	specs := 0
	for _, set := range []bool{n.Input != nil, n.Transform != nil, n.Output != nil, n.Switch != nil} {
		if set {
			specs++
		}
	}
	if specs != 1 {
		return &InvalidNodeError{Node: id, Reason: "exactly one spec must be set"}
	}

	switch n.Type {
	case NodeTypeInput:
		if n.Input == nil {
			return &InvalidNodeError{Node: id, Reason: "input node without input spec"}
		}
	case NodeTypeTransform:
		if n.Transform == nil {
			return &InvalidNodeError{Node: id, Reason: "transform node without transform spec"}
		}
	case NodeTypeOutput:
		if n.Output == nil {
			return &InvalidNodeError{Node: id, Reason: "output node without output spec"}
		}
	case NodeTypeSwitch:
		if n.Switch == nil {
			return &InvalidNodeError{Node: id, Reason: "switch node without switch spec"}
		}
		if err := n.Switch.Condition.Validate(); err != nil {
			return &InvalidSwitchError{Node: id, Reason: err.Error()}
		}
	default:
		return &InvalidNodeError{Node: id, Reason: "unknown node type " + string(n.Type)}
	}
	return nil
}

func validateSwitchEdges(id NodeId, out []Edge) error {
	if len(out) != 2 {
		return &InvalidSwitchError{Node: id, Reason: "must have exactly two outgoing edges"}
	}
	var hasTrue, hasFalse bool
	for _, e := range out {
		switch e.Label {
		case LabelTrue:
			hasTrue = true
		case LabelFalse:
			hasFalse = true
		}
	}
	if !hasTrue || !hasFalse {
		return &InvalidSwitchError{Node: id, Reason: `outgoing edges must be labeled "true" and "false"`}
	}
	return nil
}
