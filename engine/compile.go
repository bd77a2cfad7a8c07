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


package engine

import (
	"sort"

	"github.com/poiesic/docflow/credentials"
	"github.com/poiesic/docflow/queue"
	"github.com/poiesic/docflow/workflow"
)

// NodePlan is one node's resolved execution route.
type NodePlan struct {
	ID   workflow.NodeId
	Node workflow.Node

	// Queued routes the node onto Stage as a pipeline job; otherwise it
	// executes inline within the engine.
	Queued bool
	Stage  queue.Stage

	// Credentials is resolved from the registry when the node references
	// one, nil otherwise.
	Credentials *credentials.ProviderCredentials
}

// CompiledGraph is an immutable execution plan: the validated graph, one
// plan per node, and the cache slot wiring. Compiling the same definition
// against the same registry always yields the same order and routes.
type CompiledGraph struct {
	graph *workflow.Graph
	plans map[workflow.NodeId]*NodePlan

	slotWriters map[string]workflow.NodeId
	slotReaders map[string][]workflow.NodeId
}

// Graph returns the underlying validated graph.
func (c *CompiledGraph) Graph() *workflow.Graph { return c.graph }

// Order returns the deterministic topological execution order.
func (c *CompiledGraph) Order() []workflow.NodeId { return c.graph.TopologicalOrder() }

// Plan returns the execution plan of a node.
func (c *CompiledGraph) Plan(id workflow.NodeId) (*NodePlan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Slots returns the cache slot names in ascending order.
func (c *CompiledGraph) Slots() []string {
	names := make([]string, 0, len(c.slotWriters))
	for name := range c.slotWriters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasQueuedNodes reports whether any node routes onto a pipeline stage.
func (c *CompiledGraph) HasQueuedNodes() bool {
	for _, p := range c.plans {
		if p.Queued {
			return true
		}
	}
	return false
}

// transformRoute fixes where a transform kind may run. Kinds that have no
// job payload representation are inline-only.
type transformRoute struct {
	stage           queue.Stage
	queueable       bool
	queuedByDefault bool
}

var transformRoutes = map[workflow.TransformKind]transformRoute{
	workflow.TransformValidateFormat: {stage: queue.StagePreprocessing, queueable: true},
	workflow.TransformOCR:            {stage: queue.StagePreprocessing, queueable: true, queuedByDefault: true},
	workflow.TransformEmbedding:      {stage: queue.StagePreprocessing, queueable: true, queuedByDefault: true},
	workflow.TransformThumbnail:      {stage: queue.StagePreprocessing, queueable: true, queuedByDefault: true},
	workflow.TransformChunk:          {},
	workflow.TransformPartition:      {},

	workflow.TransformPromptTask: {stage: queue.StageProcessing, queueable: true, queuedByDefault: true},
	workflow.TransformAnnotate:   {stage: queue.StageProcessing, queueable: true},

	workflow.TransformFlattenAnnotations: {stage: queue.StagePostprocessing, queueable: true},
	workflow.TransformConvert:            {stage: queue.StagePostprocessing, queueable: true},
	workflow.TransformCompress:           {stage: queue.StagePostprocessing, queueable: true},
	workflow.TransformCleanup:            {stage: queue.StagePostprocessing, queueable: true},
}

// Compile validates a definition and resolves it into an execution plan.
// Checks run in order: graph structure (delegated to IntoGraph), credential
// references, execution routes, cache slot wiring.
func Compile(def *workflow.Definition, reg *credentials.Registry) (*CompiledGraph, error) {
	g, err := def.IntoGraph()
	if err != nil {
		return nil, err
	}

	compiled := &CompiledGraph{
		graph:       g,
		plans:       make(map[workflow.NodeId]*NodePlan, g.Len()),
		slotWriters: make(map[string]workflow.NodeId),
		slotReaders: make(map[string][]workflow.NodeId),
	}

	for _, id := range g.TopologicalOrder() {
		node, _ := g.Node(id)
		plan := &NodePlan{ID: id, Node: node}

		if credID := node.CredentialsID(); credID != nil {
			creds, err := reg.Get(*credID)
			if err != nil {
				return nil, &CredentialsNotFoundError{Node: id, ID: *credID}
			}
			plan.Credentials = creds
		}

		if err := routeNode(plan); err != nil {
			return nil, err
		}
		compiled.plans[id] = plan
	}

	if err := compiled.resolveSlots(g); err != nil {
		return nil, err
	}
	return compiled, nil
}

func routeNode(plan *NodePlan) error {
	node := plan.Node
	switch {
	case node.IsTransform():
		spec := node.Transform
		route, ok := transformRoutes[spec.Kind]
		if !ok {
			return &workflow.InvalidNodeError{Node: plan.ID, Reason: "unknown transform kind " + string(spec.Kind)}
		}
		switch spec.Execution {
		case workflow.ExecutionInline:
			// inline stays the zero value
		case workflow.ExecutionQueued:
			if !route.queueable {
				return &workflow.InvalidNodeError{Node: plan.ID, Reason: string(spec.Kind) + " transforms run inline only"}
			}
			plan.Queued = true
			plan.Stage = route.stage
		case workflow.ExecutionDefault:
			if route.queuedByDefault {
				plan.Queued = true
				plan.Stage = route.stage
			}
		default:
			return &workflow.InvalidNodeError{Node: plan.ID, Reason: "unknown execution mode " + string(spec.Execution)}
		}

	case node.IsOutput():
		if node.Output.Execution == workflow.ExecutionQueued {
			return &workflow.InvalidNodeError{Node: plan.ID, Reason: "output nodes execute inline only"}
		}
	}
	return nil
}

// resolveSlots checks that every cache slot has exactly one writer and at
// least one reader, and that no reader can reach its own writer through the
// edge set, which would deadlock the run.
func (c *CompiledGraph) resolveSlots(g *workflow.Graph) error {
	for _, id := range g.TopologicalOrder() {
		node, _ := g.Node(id)
		switch {
		case node.IsOutput() && node.Output.Destination == workflow.DestinationCache:
			slot := node.Output.Slot
			if slot == "" {
				return &InvalidCacheSlotError{Slot: slot, Reason: "output node " + id.String() + " has an empty slot name"}
			}
			if prev, ok := c.slotWriters[slot]; ok {
				return &InvalidCacheSlotError{Slot: slot, Reason: "written by both " + prev.String() + " and " + id.String()}
			}
			c.slotWriters[slot] = id
		case node.IsInput() && node.Input.Source == workflow.SourceCache:
			slot := node.Input.Slot
			if slot == "" {
				return &InvalidCacheSlotError{Slot: slot, Reason: "input node " + id.String() + " has an empty slot name"}
			}
			c.slotReaders[slot] = append(c.slotReaders[slot], id)
		}
	}

	for slot, writer := range c.slotWriters {
		readers := c.slotReaders[slot]
		if len(readers) == 0 {
			return &UnknownCacheSlotError{Slot: slot, Node: writer}
		}
		for _, reader := range readers {
			if _, ok := g.Descendants(reader)[writer]; ok {
				return &InvalidCacheSlotError{Slot: slot, Reason: "writer " + writer.String() + " is downstream of reader " + reader.String()}
			}
		}
	}
	for slot, readers := range c.slotReaders {
		if _, ok := c.slotWriters[slot]; !ok {
			return &UnknownCacheSlotError{Slot: slot, Node: readers[0]}
		}
	}
	return nil
}
