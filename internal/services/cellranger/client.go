package cellranger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"strand/internal/logging"
	"strand/internal/services"
	"strand/internal/services/execx"
)

// Client wraps cellranger CLI interactions.
type Client struct {
	binary        string
	uiPort        int
	fastqSubdir   string
	markerDelay   time.Duration
	markerTimeout time.Duration
	runner        execx.Runner
	logger        *slog.Logger
	ipEcho        IPEcho
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom process runner (primarily for tests).
func WithRunner(runner execx.Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// WithLogger sets the operator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUIPort forwards a UI port to invocations that expose one. Zero disables
// the flag.
func WithUIPort(port int) Option {
	return func(c *Client) { c.uiPort = port }
}

// WithFastqSubdir overrides the run-relative mkfastq output subdirectory.
func WithFastqSubdir(subdir string) Option {
	return func(c *Client) {
		if subdir != "" {
			c.fastqSubdir = subdir
		}
	}
}

// WithMarkerTiming overrides the _uiport marker poll delay and deadline.
func WithMarkerTiming(delay, timeout time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.markerDelay = delay
		}
		if timeout > 0 {
			c.markerTimeout = timeout
		}
	}
}

// WithIPEcho injects the external-address resolver used for UI URLs.
func WithIPEcho(echo IPEcho) Option {
	return func(c *Client) {
		if echo != nil {
			c.ipEcho = echo
		}
	}
}

// New constructs a cellranger client.
func New(binary string, opts ...Option) (*Client, error) {
	if binary == "" {
		return nil, errors.New("cellranger binary required")
	}
	client := &Client{
		binary:        binary,
		fastqSubdir:   "outs/fastq_path",
		markerDelay:   5 * time.Second,
		markerTimeout: 60 * time.Second,
		runner:        execx.NewLocal(),
		logger:        logging.NewNop(),
		ipEcho:        NewIpifyEcho(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// MkfastqRequest describes one demultiplexing invocation.
type MkfastqRequest struct {
	RunName     string
	RunPath     string
	Samplesheet string
	SimpleCSV   string
	DemuxDir    string
	LogDir      string
}

// Mkfastq demultiplexes one run and returns the fastq output path. The path
// is computed from the configured subdirectory, then verified on disk; a
// missing directory is reported but not fatal because the layout is an
// assumption about cellranger's behaviour, not part of its contract.
func (c *Client) Mkfastq(ctx context.Context, req MkfastqRequest) (string, error) {
	args := []string{"mkfastq", "--id=" + req.RunName, "--run=" + req.RunPath}
	switch {
	case req.Samplesheet != "":
		args = append(args, "--samplesheet="+req.Samplesheet)
	case req.SimpleCSV != "":
		args = append(args, "--csv="+req.SimpleCSV)
	default:
		return "", services.Wrap(services.ErrConfiguration, "mkfastq", req.RunName, "no samplesheet or simple csv", nil)
	}
	if c.uiPort > 0 {
		args = append(args, "--uiport="+strconv.Itoa(c.uiPort))
	}

	inv := execx.Invocation{
		Binary: c.binary,
		Args:   args,
		Dir:    req.DemuxDir,
		Stage:  "mkfastq",
		Name:   req.RunName,
		LogDir: req.LogDir,
	}
	marker := filepath.Join(req.DemuxDir, req.RunName, uiMarkerFile)
	if err := c.invoke(ctx, inv, marker); err != nil {
		return "", err
	}

	fastqPath := filepath.Join(req.DemuxDir, req.RunName, filepath.FromSlash(c.fastqSubdir))
	if _, err := os.Stat(fastqPath); err != nil {
		c.logger.Warn("computed fastq path not found after mkfastq",
			logging.String(logging.FieldRun, req.RunName),
			logging.String("fastq_path", fastqPath),
		)
	}
	return fastqPath, nil
}

// MultiRequest describes one per-sample multi invocation.
type MultiRequest struct {
	SampleName string
	ConfigCSV  string
	OutputDir  string
	LogDir     string
}

// Multi processes one sample against its generated multi-config CSV and
// returns the sample's output directory.
func (c *Client) Multi(ctx context.Context, req MultiRequest) (string, error) {
	args := []string{"multi", "--id", req.SampleName, "--csv", req.ConfigCSV}
	if c.uiPort > 0 {
		args = append(args, "--uiport", strconv.Itoa(c.uiPort))
	}
	inv := execx.Invocation{
		Binary: c.binary,
		Args:   args,
		Dir:    req.OutputDir,
		Stage:  "multi",
		Name:   req.SampleName,
		LogDir: req.LogDir,
	}
	marker := filepath.Join(req.OutputDir, req.SampleName, uiMarkerFile)
	if err := c.invoke(ctx, inv, marker); err != nil {
		return "", err
	}
	return filepath.Join(req.OutputDir, req.SampleName), nil
}

// VDJRequest describes one per-sample vdj invocation.
type VDJRequest struct {
	SampleName string
	Reference  string
	FastqPaths []string
	OutputDir  string
	LogDir     string
}

// VDJ assembles V(D)J sequences for one sample.
func (c *Client) VDJ(ctx context.Context, req VDJRequest) (string, error) {
	args := []string{"vdj", "--id", req.SampleName, "--reference", req.Reference, "--sample", req.SampleName}
	for _, fastq := range req.FastqPaths {
		args = append(args, "--fastqs", fastq)
	}
	if c.uiPort > 0 {
		args = append(args, "--uiport", strconv.Itoa(c.uiPort))
	}
	inv := execx.Invocation{
		Binary: c.binary,
		Args:   args,
		Dir:    req.OutputDir,
		Stage:  "vdj",
		Name:   req.SampleName,
		LogDir: req.LogDir,
	}
	marker := filepath.Join(req.OutputDir, req.SampleName, uiMarkerFile)
	if err := c.invoke(ctx, inv, marker); err != nil {
		return "", err
	}
	return filepath.Join(req.OutputDir, req.SampleName), nil
}

// CountRequest describes one per-sample count invocation, optionally with a
// feature reference for feature-barcoding libraries.
type CountRequest struct {
	SampleName    string
	Transcriptome string
	LibrariesCSV  string
	FeatureRef    string
	OutputDir     string
	LogDir        string
}

// Count quantifies gene expression for one sample.
func (c *Client) Count(ctx context.Context, req CountRequest) (string, error) {
	args := []string{"count", "--id", req.SampleName, "--transcriptome", req.Transcriptome, "--libraries", req.LibrariesCSV}
	if req.FeatureRef != "" {
		args = append(args, "--feature-ref", req.FeatureRef)
	}
	if c.uiPort > 0 {
		args = append(args, "--uiport", strconv.Itoa(c.uiPort))
	}
	inv := execx.Invocation{
		Binary: c.binary,
		Args:   args,
		Dir:    req.OutputDir,
		Stage:  "count",
		Name:   req.SampleName,
		LogDir: req.LogDir,
	}
	marker := filepath.Join(req.OutputDir, req.SampleName, uiMarkerFile)
	if err := c.invoke(ctx, inv, marker); err != nil {
		return "", err
	}
	return filepath.Join(req.OutputDir, req.SampleName), nil
}

// AggrRequest describes one group aggregation invocation.
type AggrRequest struct {
	Group     string
	CSV       string
	Normalize string
	OutputDir string
	LogDir    string
}

// Aggr combines the per-sample molecule files of a group and returns the
// group's output directory.
func (c *Client) Aggr(ctx context.Context, req AggrRequest) (string, error) {
	normalize := req.Normalize
	if normalize == "" {
		normalize = "mapped"
	}
	args := []string{"aggr", "--id", req.Group, "--csv", req.CSV, "--normalize", normalize}
	inv := execx.Invocation{
		Binary: c.binary,
		Args:   args,
		Dir:    req.OutputDir,
		Stage:  "aggr",
		Name:   req.Group,
		LogDir: req.LogDir,
	}
	// aggr has no live UI marker worth reporting; run to completion.
	if _, err := c.runner.Run(ctx, inv); err != nil {
		return "", err
	}
	return filepath.Join(req.OutputDir, req.Group), nil
}

// invoke launches the command, reports the UI endpoint while it runs, and
// waits for completion.
func (c *Client) invoke(ctx context.Context, inv execx.Invocation, markerPath string) error {
	process, err := c.runner.Launch(ctx, inv)
	if err != nil {
		return err
	}

	markerErr := c.reportUI(ctx, inv, markerPath)

	if _, err := process.Wait(); err != nil {
		if markerErr != nil {
			// The missing marker was the early symptom; the exit error is
			// authoritative, so attach both.
			return fmt.Errorf("%w (ui marker: %v)", err, markerErr)
		}
		return err
	}
	if markerErr != nil {
		c.logger.Warn("cellranger UI endpoint unavailable",
			logging.String(logging.FieldStage, inv.Stage),
			logging.Error(markerErr),
		)
	}
	return nil
}
