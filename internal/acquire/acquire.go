// Package acquire resolves a sequencing run's raw data to a local,
// uncompressed directory: remote archives are downloaded, local archives
// decompressed, plain local directories optionally copied into the project
// staging area.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"strand/internal/batch"
	"strand/internal/logging"
	"strand/internal/services"
	"strand/internal/services/execx"
)

// completionMarker is written by the sequencer when a run finishes; the
// directory containing it is the run root cellranger expects.
const completionMarker = "RTAComplete.txt"

// Acquirer normalizes run origins to uncompressed local directories.
type Acquirer struct {
	runner execx.Runner
	client *http.Client
	logger *slog.Logger
}

// Option configures the acquirer.
type Option func(*Acquirer)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(runner execx.Runner) Option {
	return func(a *Acquirer) {
		if runner != nil {
			a.runner = runner
		}
	}
}

// WithHTTPClient injects the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Acquirer) {
		if client != nil {
			a.client = client
		}
	}
}

// WithLogger sets the operator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acquirer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New constructs an acquirer.
func New(opts ...Option) *Acquirer {
	acq := &Acquirer{
		runner: execx.NewLocal(),
		client: &http.Client{Timeout: 2 * time.Hour},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(acq)
	}
	return acq
}

// Acquire resolves the run to a local, uncompressed directory and returns
// its path. The terminal state is always "directory on disk"; which
// transitions run depends on the run's origin.
func (a *Acquirer) Acquire(ctx context.Context, run *batch.Run, stagingDir, logDir string) (string, error) {
	destination := filepath.Join(stagingDir, run.Name)
	path := run.Path

	if path != "" && run.CopyToProject && !run.IsCompressed {
		a.logger.Info("copying run data into project", logging.String(logging.FieldRun, run.Name))
		if err := copyTree(path, destination); err != nil {
			return "", services.Wrap(services.ErrExternalTool, "acquire", run.Name, "copy run data", err)
		}
		path = destination
	}

	if run.URL != "" {
		a.logger.Info("downloading run data",
			logging.String(logging.FieldRun, run.Name),
			logging.String("url", run.URL),
		)
		downloaded, err := a.download(ctx, run.URL, destination)
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, "acquire", run.Name, "download run data", err)
		}
		path = downloaded
	}

	if run.IsCompressed {
		a.logger.Info("decompressing run data", logging.String(logging.FieldRun, run.Name))
		resolved, err := a.decompress(ctx, run.Name, path, destination, logDir)
		if err != nil {
			return "", err
		}
		path = resolved
	}

	if path == "" {
		return "", services.Wrap(services.ErrConfiguration, "acquire", run.Name, "run has no origin", nil)
	}
	return path, nil
}

// download streams the URL into destination and returns the archive path,
// derived from the URL basename.
func (a *Acquirer) download(ctx context.Context, url, destination string) (string, error) {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", fmt.Errorf("create download destination: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	name := filepath.Base(strings.SplitN(url, "?", 2)[0])
	target := filepath.Join(destination, name)
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create download target: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return target, nil
}

// decompress dispatches on the archive extension, extracts into destination,
// and walks the result for the sequencer completion marker. An unsupported
// extension is a hard stop before anything is invoked.
func (a *Acquirer) decompress(ctx context.Context, runName, source, destination, logDir string) (string, error) {
	var binary string
	var args []string
	switch {
	case strings.HasSuffix(source, ".tar.gz"), strings.HasSuffix(source, ".tgz"):
		binary, args = "tar", []string{"xzf", source, "-C", destination}
	case strings.HasSuffix(source, ".tar"):
		binary, args = "tar", []string{"xf", source, "-C", destination}
	case strings.HasSuffix(source, ".zip"):
		binary, args = "unzip", []string{"-o", source, "-d", destination}
	default:
		return "", services.Wrap(services.ErrUnsupportedFormat, "acquire", runName,
			fmt.Sprintf("%s: only .tar, .tar.gz, .tgz and .zip archives are supported", source), nil)
	}

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "acquire", runName, "create extraction destination", err)
	}

	inv := execx.Invocation{
		Binary: binary,
		Args:   args,
		Stage:  "decompress",
		Name:   runName,
		LogDir: logDir,
	}
	if _, err := a.runner.Run(ctx, inv); err != nil {
		return "", err
	}
	return locateRunRoot(destination), nil
}

// locateRunRoot finds the extracted subdirectory holding the completion
// marker, falling back to the extraction root.
func locateRunRoot(destination string) string {
	root := destination
	_ = filepath.WalkDir(destination, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() && entry.Name() == completionMarker {
			root = filepath.Dir(path)
			return errors.New("stop") // sentinel to end the walk early
		}
		return nil
	})
	return root
}

func copyTree(source, destination string) error {
	if _, err := os.Stat(destination); err == nil {
		return fmt.Errorf("destination %s already exists", destination)
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return err
	}
	return copyFS(destination, os.DirFS(source))
}

// copyFS mirrors os.CopyFS, which is unavailable before Go 1.23.
func copyFS(dir string, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		newPath := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(newPath, 0o777)
		}
		if !d.Type().IsRegular() {
			return &os.PathError{Op: "CopyFS", Path: path, Err: os.ErrInvalid}
		}
		r, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer r.Close()
		info, err := r.Stat()
		if err != nil {
			return err
		}
		w, err := os.OpenFile(newPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666|info.Mode()&0o777)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, r); err != nil {
			w.Close()
			return &os.PathError{Op: "Copy", Path: newPath, Err: err}
		}
		return w.Close()
	})
}
