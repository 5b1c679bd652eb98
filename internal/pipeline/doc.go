// Package pipeline sequences the batch: every run is acquired and
// demultiplexed in declaration order, each run's fastq output is bound onto
// the sample libraries that reference it, every sample is processed through
// its operations in name order, and aggregation groups combine per-sample
// results last.
//
// Execution is strictly sequential. Failures are persisted per run/sample;
// the continue-on-error policy decides whether a recoverable failure skips
// the unit or aborts the batch.
package pipeline
