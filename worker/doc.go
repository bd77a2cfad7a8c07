// Package worker provides the pipeline dispatcher framework: per-stage pull
// loops that deserialize jobs, run them through a JobHandler on a bounded
// worker pool, and apply the ack/retry/dead-letter policy. The three
// concrete stage handlers live here too.
package worker
