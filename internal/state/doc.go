// Package state persists per-run and per-sample pipeline progress in SQLite.
//
// The store is the single source of truth for stage completion: acquisition
// consults it to stay idempotent across re-invocations, the orchestrator
// records stage transitions and failures through it, and `strand status`
// renders it. The database lives under the project log directory and is
// scoped to one project. Schema changes bump schemaVersion in schema.go;
// a mismatched database must be deleted to adopt the new schema.
package state
