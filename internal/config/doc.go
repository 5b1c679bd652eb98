// Package config loads the tool-level settings file.
//
// Settings cover how strand runs (cellranger binary, UI port, logging,
// failure policy); the experiment itself (runs, samples, references) lives in
// the batch document parsed by internal/batch. The two are deliberately
// separate files: settings belong to the machine, the batch document belongs
// to the experiment and is copied into the project directory for provenance.
package config
