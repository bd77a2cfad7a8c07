// Package queue defines the durable, stage-partitioned job pipeline: the
// three processing stages and their subject routing, the typed Job envelope
// with priority and retry bookkeeping, and the Broker seam the dispatcher
// framework runs against.
//
// Delivery is at-least-once. Handlers are expected to be idempotent; all
// ack, retry, and redelivery coordination is delegated to the broker rather
// than tracked locally.
package queue
