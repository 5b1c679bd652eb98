// Package batch models one pipeline execution: the runs to acquire and
// demultiplex, the samples to process, and the references each sample
// resolves against.
//
// The batch document is YAML (see Load). Reference fallback to the "default"
// key and library-name parsing from samplesheets happen at construction time,
// so downstream stages never reach back into the document. The Batch owns its
// Runs and Samples; a Sample owns its Libraries; nothing holds a
// back-reference, lookups go by name.
package batch
