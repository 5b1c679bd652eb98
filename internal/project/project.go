// Package project derives and creates the on-disk layout for one pipeline
// project and guards it against concurrent pipelines with a file lock.
package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Layout holds the directories one pipeline execution writes into, all
// rooted under the project directory.
type Layout struct {
	Root string
	// RunData stages acquired (downloaded/copied/decompressed) run data.
	RunData string
	// Demux receives cellranger mkfastq output, one subdirectory per run.
	Demux string
	// Counts receives cellranger multi output, one subdirectory per sample.
	Counts string
	// Aggr receives cellranger aggr output, one subdirectory per group.
	Aggr string
	// Logs receives the pipeline log, the state database, and per-invocation
	// stdout/stderr captures in stage-named subdirectories.
	Logs string
}

// Plan creates the project layout. Creation is idempotent: existing
// directories are left untouched and never cause an error.
func Plan(root string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolutize project root: %w", err)
	}
	layout := &Layout{
		Root:    abs,
		RunData: filepath.Join(abs, "run_data"),
		Demux:   filepath.Join(abs, "cellranger", "mkfastq"),
		Counts:  filepath.Join(abs, "cellranger", "multi"),
		Aggr:    filepath.Join(abs, "cellranger", "aggr"),
		Logs:    filepath.Join(abs, "logs"),
	}
	for _, dir := range []string{layout.Root, layout.RunData, layout.Demux, layout.Counts, layout.Aggr, layout.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return layout, nil
}

// StageLogDir returns (and creates) the log subdirectory for a stage.
func (l *Layout) StageLogDir(stage string) (string, error) {
	dir := filepath.Join(l.Logs, stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create stage log dir: %w", err)
	}
	return dir, nil
}

// CopyConfig copies the batch document into the project root for provenance.
func (l *Layout) CopyConfig(sourcePath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open batch document: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(l.Root, "config.yaml"))
	if err != nil {
		return fmt.Errorf("copy batch document: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy batch document: %w", err)
	}
	return nil
}

// Lock acquires an exclusive lock on the project directory. The caller must
// release it with the returned unlock function.
func (l *Layout) Lock() (func(), error) {
	lock := flock.New(filepath.Join(l.Root, "strand.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("project %s is locked by another strand process", l.Root)
	}
	return func() { _ = lock.Unlock() }, nil
}
