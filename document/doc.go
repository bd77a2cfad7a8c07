// Package document implements the content operations the stage handlers
// compose: text chunking, format conversion, annotation handling,
// compression, thumbnail generation, and format validation. Every function
// operates on core.DataValue and leaves its input untouched unless the
// operation is in-place by contract.
package document
