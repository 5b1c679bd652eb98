// Package binder maps a demultiplexed run's fastq location back onto the
// sample libraries that referenced the run's declared library names.
package binder

import (
	"log/slog"

	"strand/internal/batch"
	"strand/internal/logging"
)

// Bind appends the run's resolved fastq path to every library of every
// sample whose name appears among the run's declared libraries. Binding is
// idempotent per (run, library): re-invocation never produces duplicate
// entries. It returns the number of libraries that gained a new path.
func Bind(run *batch.Run, samples []*batch.Sample, logger *slog.Logger) int {
	if logger == nil {
		logger = logging.NewNop()
	}
	if run.FastqPath == "" {
		logger.Warn("binder invoked before demultiplexing resolved a fastq path",
			logging.String(logging.FieldRun, run.Name),
		)
		return 0
	}

	bound := 0
	for _, sample := range samples {
		for _, library := range sample.Libraries {
			if !run.DeclaresLibrary(library.Name) {
				continue
			}
			before := len(library.FastqPaths)
			library.AddFastqPath(run.FastqPath)
			if len(library.FastqPaths) > before {
				bound++
				logger.Debug("bound fastq path to library",
					logging.String(logging.FieldRun, run.Name),
					logging.String(logging.FieldSample, sample.Name),
					logging.String("library", library.Name),
					logging.String("fastq_path", run.FastqPath),
				)
			}
		}
	}
	return bound
}
