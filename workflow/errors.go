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

import (
	"fmt"
	"strings"
)

// UnknownNodeError reports an edge endpoint that is not a key of the
// definition's node map.
type UnknownNodeError struct {
	Node NodeId
	Edge Edge
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s -> %s references unknown node %s",
		e.Edge.From, e.Edge.To, e.Node)
}

// CycleError reports that the edge set contains a directed cycle. Path holds
// the nodes along the cycle, first node repeated at the end.
type CycleError struct {
	Path []NodeId
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = id.String()
	}
	return "workflow contains a cycle: " + strings.Join(parts, " -> ")
}

// InvalidSwitchError reports a switch node whose outgoing edges are not
// exactly one "true" and one "false" labeled edge, or whose condition is
// malformed.
type InvalidSwitchError struct {
	Node   NodeId
	Reason string
}

func (e *InvalidSwitchError) Error() string {
	return fmt.Sprintf("invalid switch node %s: %s", e.Node, e.Reason)
}

// InvalidConditionError reports a malformed switch condition.
type InvalidConditionError struct {
	Kind   ConditionKind
	Reason string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid %q condition: %s", e.Kind, e.Reason)
}

// InvalidNodeError reports a node whose spec does not match its declared
// type.
type InvalidNodeError struct {
	Node   NodeId
	Reason string
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("invalid node %s: %s", e.Node, e.Reason)
}
