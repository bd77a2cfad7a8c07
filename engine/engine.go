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
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/connector"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/queue"
	"github.com/poiesic/docflow/workflow"
)

// DefaultMaxConcurrentRuns bounds how many workflow runs execute at once.
const DefaultMaxConcurrentRuns = 4

// DefaultNodeTimeout bounds a single node's execution, inline or queued.
const DefaultNodeTimeout = 5 * time.Minute

// DefaultCompletionPoll is how often the completion watcher polls when the
// completion subjects are empty.
const DefaultCompletionPoll = 100 * time.Millisecond

// Engine executes compiled workflow graphs against its collaborators: a
// broker for queued nodes, an AI provider for inline inference, and a
// connector registry for provider-backed inputs and outputs. All of them
// are optional; a node needing a missing collaborator fails its run.
type Engine struct {
	broker     queue.Broker
	provider   ai.Provider
	connectors *connector.Registry
	maxRuns    int
	timeout    time.Duration
	poll       time.Duration
	logger     *slog.Logger

	sem     *semaphore.Weighted
	running atomic.Int64
	watcher *completionWatcher
}

// Option configures an Engine.
type Option func(*Engine) error

// WithBroker sets the message broker queued nodes are published through.
func WithBroker(b queue.Broker) Option {
	return func(e *Engine) error {
		e.broker = b
		return nil
	}
}

// WithProvider sets the AI provider used by inline inference nodes.
func WithProvider(p ai.Provider) Option {
	return func(e *Engine) error {
		e.provider = p
		return nil
	}
}

// WithConnectors sets the registry provider-backed inputs and outputs are
// resolved from.
func WithConnectors(r *connector.Registry) Option {
	return func(e *Engine) error {
		e.connectors = r
		return nil
	}
}

// WithMaxConcurrentRuns bounds concurrent Execute calls.
// Default is DefaultMaxConcurrentRuns.
func WithMaxConcurrentRuns(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.maxRuns = n
		return nil
	}
}

// WithNodeTimeout bounds each node's execution.
// Default is DefaultNodeTimeout.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		e.timeout = d
		return nil
	}
}

// WithCompletionPoll sets the watcher's idle poll interval.
func WithCompletionPoll(d time.Duration) Option {
	return func(e *Engine) error {
		e.poll = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an engine. When a broker is configured the completion watcher
// starts immediately and runs until Close.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		maxRuns: DefaultMaxConcurrentRuns,
		timeout: DefaultNodeTimeout,
		poll:    DefaultCompletionPoll,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.sem = semaphore.NewWeighted(int64(e.maxRuns))

	if e.broker != nil {
		watcher, err := newCompletionWatcher(context.Background(), e.broker, e.poll,
			e.logger.With("component", "completion-watcher"))
		if err != nil {
			return nil, fmt.Errorf("starting completion watcher: %w", err)
		}
		e.watcher = watcher
	}
	return e, nil
}

// Close stops the completion watcher. In-flight runs are not interrupted;
// cancel their contexts to abort them.
func (e *Engine) Close() error {
	if e.watcher != nil {
		e.watcher.stop()
	}
	return nil
}

// AvailableSlots returns how many more runs may start without blocking.
func (e *Engine) AvailableSlots() int {
	return e.maxRuns - int(e.running.Load())
}

// Validate checks a definition without compiling or executing it.
func (e *Engine) Validate(def *workflow.Definition) error {
	_, err := def.IntoGraph()
	return err
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// NodeStatus tracks one node through a run.
type NodeStatus string

const (
	NodePending    NodeStatus = "pending"
	NodeDispatched NodeStatus = "dispatched"
	NodeDone       NodeStatus = "done"
	NodeErrored    NodeStatus = "errored"
	// NodeSkipped marks nodes pruned by a switch, starved of items, or
	// downstream of a failure.
	NodeSkipped NodeStatus = "skipped"
)

// NodeResult is one node's outcome within a run.
type NodeResult struct {
	Status NodeStatus
	Error  string
	Items  int
}

// RunResult summarizes a finished run.
type RunResult struct {
	Status       RunStatus
	Nodes        map[workflow.NodeId]NodeResult
	ItemsWritten int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Execute runs a compiled graph. It blocks until a run permit is available,
// then walks the graph in dependency order, executing ready nodes
// concurrently. A node failure fails the run but already-dispatched sibling
// branches finish. The optional input value feeds provider-source input
// nodes that have no registered reader.
func (e *Engine) Execute(ctx context.Context, compiled *CompiledGraph, input *core.DataValue) (*RunResult, error) {
	if compiled.HasQueuedNodes() && e.watcher == nil {
		return nil, ErrBrokerRequired
	}
	// Compiled graphs may be cached or rebuilt by callers; re-check the
	// structure instead of trusting provenance.
	if err := compiled.Graph().Validate(); err != nil {
		return nil, err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	e.running.Add(1)
	defer func() {
		e.running.Add(-1)
		e.sem.Release(1)
	}()

	r := &run{
		engine:   e,
		compiled: compiled,
		input:    input,
		slots:    make(map[string]*CacheSlot),
		pending:  make(map[workflow.NodeId]int),
		inputs:   make(map[workflow.NodeId][]*core.DataValue),
		tainted:  make(map[workflow.NodeId]bool),
		nodes:    make(map[workflow.NodeId]*NodeResult),
		results:  make(chan nodeOutcome),
	}
	for _, name := range compiled.Slots() {
		r.slots[name] = newCacheSlot(name)
	}
	return r.execute(ctx)
}

// nodeOutcome is what a node execution goroutine reports back. byLabel is
// set only for switch nodes and splits the items per outgoing edge label.
type nodeOutcome struct {
	id      workflow.NodeId
	items   []*core.DataValue
	byLabel map[string][]*core.DataValue
	err     error
}

// run is the mutable state of one Execute call. All fields except slots are
// touched only by the orchestrating goroutine; node goroutines communicate
// exclusively through the results channel.
type run struct {
	engine   *Engine
	compiled *CompiledGraph
	input    *core.DataValue
	slots    map[string]*CacheSlot

	pending  map[workflow.NodeId]int
	inputs   map[workflow.NodeId][]*core.DataValue
	tainted  map[workflow.NodeId]bool
	nodes    map[workflow.NodeId]*NodeResult
	results  chan nodeOutcome
	inFlight int
	failed   bool
}

func (r *run) execute(ctx context.Context) (*RunResult, error) {
	g := r.compiled.Graph()
	started := time.Now().UTC()

	order := g.TopologicalOrder()
	for _, id := range order {
		r.pending[id] = len(g.Incoming(id))
		r.nodes[id] = &NodeResult{Status: NodePending}
	}
	for _, id := range order {
		if r.pending[id] == 0 {
			r.dispatch(ctx, id)
		}
	}

	for r.inFlight > 0 {
		outcome := <-r.results
		r.inFlight--

		res := r.nodes[outcome.id]
		if outcome.err != nil {
			r.failed = true
			res.Status = NodeErrored
			res.Error = outcome.err.Error()
			r.engine.logger.Error("node failed", "node", outcome.id, "error", outcome.err)
		} else {
			res.Status = NodeDone
			res.Items = len(outcome.items)
		}

		r.closeSlotsOf(outcome.id)
		r.feedChildren(ctx, outcome)
	}

	result := &RunResult{
		Status:     RunCompleted,
		Nodes:      make(map[workflow.NodeId]NodeResult, len(r.nodes)),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if r.failed {
		result.Status = RunFailed
	}
	for id, res := range r.nodes {
		result.Nodes[id] = *res
		node, _ := g.Node(id)
		if res.Status == NodeDone && node.IsOutput() {
			result.ItemsWritten += res.Items
		}
	}

	r.engine.logger.Info("run finished",
		"status", result.Status,
		"nodes", len(result.Nodes),
		"items_written", result.ItemsWritten,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

func (r *run) dispatch(ctx context.Context, id workflow.NodeId) {
	plan, ok := r.compiled.Plan(id)
	if !ok {
		// Cannot happen for a graph compiled by Compile.
		r.nodes[id].Status = NodeErrored
		r.nodes[id].Error = "no execution plan"
		r.failed = true
		return
	}

	items := r.inputs[id]
	r.nodes[id].Status = NodeDispatched
	r.inFlight++
	go func() {
		out, byLabel, err := r.executeNode(ctx, plan, items)
		r.results <- nodeOutcome{id: id, items: out, byLabel: byLabel, err: err}
	}()
}

// skip marks a node as not executing and propagates readiness to its
// children as if it finished with zero items.
func (r *run) skip(ctx context.Context, id workflow.NodeId) {
	r.nodes[id].Status = NodeSkipped
	r.closeSlotsOf(id)
	r.feedChildren(ctx, nodeOutcome{id: id})
}

func (r *run) feedChildren(ctx context.Context, outcome nodeOutcome) {
	g := r.compiled.Graph()
	for _, edge := range g.Outgoing(outcome.id) {
		child := edge.To
		switch {
		case outcome.err != nil:
			r.tainted[child] = true
		case outcome.byLabel != nil:
			r.inputs[child] = append(r.inputs[child], outcome.byLabel[edge.Label]...)
		default:
			r.inputs[child] = append(r.inputs[child], outcome.items...)
		}

		r.pending[child]--
		if r.pending[child] > 0 {
			continue
		}

		node, _ := g.Node(child)
		switch {
		case r.tainted[child]:
			r.skip(ctx, child)
		case len(r.inputs[child]) == 0 && !node.IsInput():
			r.skip(ctx, child)
		default:
			r.dispatch(ctx, child)
		}
	}
}

func (r *run) closeSlotsOf(id workflow.NodeId) {
	for slot, writer := range r.compiled.slotWriters {
		if writer == id {
			r.slots[slot].Close()
		}
	}
}

func (r *run) executeNode(ctx context.Context, plan *NodePlan, items []*core.DataValue) ([]*core.DataValue, map[string][]*core.DataValue, error) {
	node := plan.Node
	switch {
	case node.IsInput():
		out, err := r.readInput(ctx, plan)
		return out, nil, err

	case node.IsOutput():
		out, err := r.writeOutput(ctx, plan, items)
		return out, nil, err

	case node.IsSwitch():
		byLabel := make(map[string][]*core.DataValue, 2)
		for _, item := range items {
			label := workflow.LabelFalse
			if node.Switch.Condition.Evaluate(item) {
				label = workflow.LabelTrue
			}
			byLabel[label] = append(byLabel[label], item)
		}
		return items, byLabel, nil

	case node.IsTransform():
		tctx, cancel := context.WithTimeout(ctx, r.engine.timeout)
		defer cancel()
		if plan.Queued {
			out, err := r.engine.runTransformQueued(tctx, plan, items)
			return out, nil, err
		}
		out, err := r.engine.runTransformInline(tctx, node.Transform, items)
		return out, nil, err
	}
	return nil, nil, fmt.Errorf("node %s has unknown type %q", plan.ID, node.Type)
}

func (r *run) readInput(ctx context.Context, plan *NodePlan) ([]*core.DataValue, error) {
	spec := plan.Node.Input
	switch spec.Source {
	case workflow.SourceCache:
		slot, ok := r.slots[spec.Slot]
		if !ok {
			return nil, &UnknownCacheSlotError{Slot: spec.Slot, Node: plan.ID}
		}
		return slot.Read(ctx)

	case workflow.SourceProvider:
		if plan.Credentials != nil && r.engine.connectors != nil {
			reader, err := r.engine.connectors.Reader(plan.Credentials.ID)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", plan.ID, err)
			}
			stream, err := reader.Read(ctx, spec.Locator, "")
			if err != nil {
				return nil, err
			}
			return connector.ReadAll(ctx, stream)
		}
		if r.input != nil {
			return []*core.DataValue{r.input.Clone()}, nil
		}
		return nil, fmt.Errorf("%w: node %s", ErrNoInput, plan.ID)
	}
	return nil, fmt.Errorf("node %s has unknown input source %q", plan.ID, spec.Source)
}

func (r *run) writeOutput(ctx context.Context, plan *NodePlan, items []*core.DataValue) ([]*core.DataValue, error) {
	spec := plan.Node.Output
	switch spec.Destination {
	case workflow.DestinationCache:
		slot, ok := r.slots[spec.Slot]
		if !ok {
			return nil, &UnknownCacheSlotError{Slot: spec.Slot, Node: plan.ID}
		}
		if err := slot.Write(items...); err != nil {
			return nil, err
		}
		return items, nil

	case workflow.DestinationProvider:
		if plan.Credentials == nil || r.engine.connectors == nil {
			return nil, fmt.Errorf("node %s: %w", plan.ID, connector.ErrNoWriter)
		}
		writer, err := r.engine.connectors.Writer(plan.Credentials.ID)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", plan.ID, err)
		}
		if err := writer.Write(ctx, spec.Locator, items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, fmt.Errorf("node %s has unknown output destination %q", plan.ID, spec.Destination)
}
