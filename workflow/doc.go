// Package workflow defines the typed directed-graph model of a document
// workflow: nodes (input, transform, output, switch), edges, the
// serializable WorkflowDefinition authored by clients, and the validated
// Graph the engine executes.
//
// A Definition is the unit of persistence and the JSON wire format. It is
// turned into a Graph exactly once via Definition.IntoGraph, which checks
// that every edge endpoint exists, that the edge set is acyclic, and that
// every switch node has exactly two outgoing edges labeled "true" and
// "false". The resulting Graph is immutable and exposes a deterministic
// topological order.
package workflow
