// Package services defines shared utilities consumed by the pipeline stage
// handlers and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run names, sample names, and stage names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     consistently across stages.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
