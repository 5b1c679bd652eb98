// Package logging constructs slog loggers for the pipeline and standardizes
// the structured fields stages attach to their records.
//
// Two output formats are supported: a human-oriented console format that
// colorizes levels when attached to a terminal, and JSON for machine
// consumption. Loggers are created once per pipeline run and passed
// explicitly; nothing in this package holds global state.
package logging
