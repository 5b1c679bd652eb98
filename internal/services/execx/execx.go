// Package execx is the synchronous external-process primitive shared by the
// pipeline stages: it launches a command, captures stdout and stderr, checks
// the exit status, and persists the captured output next to the stage logs.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"strand/internal/logging"
	"strand/internal/services"
)

var commandContext = exec.CommandContext

// Invocation describes one external command.
type Invocation struct {
	Binary string
	Args   []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// Stage and Name key the persisted capture files: {LogDir}/{Name}.stdout
	// and {Name}.stderr. Stage is used for log context only.
	Stage string
	Name  string
	// LogDir, when non-empty, receives the capture files.
	LogDir string
}

// Result carries the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes invocations. The interface exists so stage tests can stub
// external binaries.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
	Launch(ctx context.Context, inv Invocation) (Process, error)
}

// Process is a launched, not yet reaped command.
type Process interface {
	Wait() (Result, error)
}

// Option configures the local runner.
type Option func(*Local)

// WithDebug echoes full command lines and captured output to the logger.
func WithDebug(debug bool) Option {
	return func(l *Local) { l.debug = debug }
}

// WithLogger sets the operator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Local runs commands on the local machine.
type Local struct {
	logger *slog.Logger
	debug  bool
}

// NewLocal constructs a runner.
func NewLocal(opts ...Option) *Local {
	runner := &Local{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run launches the invocation and blocks until it exits.
func (l *Local) Run(ctx context.Context, inv Invocation) (Result, error) {
	handle, err := l.Launch(ctx, inv)
	if err != nil {
		return Result{}, err
	}
	return handle.Wait()
}

// Launch starts the invocation without waiting. Callers that need to probe
// runtime artifacts (the cellranger UI marker) launch, probe, then Wait.
func (l *Local) Launch(ctx context.Context, inv Invocation) (Process, error) {
	if strings.TrimSpace(inv.Binary) == "" {
		return nil, services.Wrap(services.ErrConfiguration, inv.Stage, inv.Name, "no binary configured", nil)
	}

	cmd := commandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if l.debug {
		l.logger.Info("running command",
			logging.String(logging.FieldStage, inv.Stage),
			logging.String("command", commandLine(inv)),
			logging.String("dir", inv.Dir),
		)
	}

	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, inv.Stage, inv.Name, fmt.Sprintf("start %s", inv.Binary), err)
	}
	return &Handle{runner: l, inv: inv, cmd: cmd, stdout: &stdout, stderr: &stderr}, nil
}

// Handle is the local Process implementation.
type Handle struct {
	runner *Local
	inv    Invocation
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// Wait blocks until the command exits, persists captures, and maps a
// non-zero exit to ErrExternalTool. Captured output is flushed to disk
// before the error is returned.
func (h *Handle) Wait() (Result, error) {
	waitErr := h.cmd.Wait()
	result := Result{Stdout: h.stdout.Bytes(), Stderr: h.stderr.Bytes()}

	if h.runner.debug {
		h.runner.logger.Info("command finished",
			logging.String(logging.FieldStage, h.inv.Stage),
			logging.String("command", commandLine(h.inv)),
			logging.String("stdout", strings.TrimSpace(string(result.Stdout))),
			logging.String("stderr", strings.TrimSpace(string(result.Stderr))),
		)
	}

	if err := persistCapture(h.inv, result); err != nil {
		h.runner.logger.Warn("failed to persist command output",
			logging.String(logging.FieldStage, h.inv.Stage),
			logging.Error(err),
		)
	}

	if waitErr != nil {
		detail := fmt.Sprintf("%s exited abnormally", h.inv.Binary)
		if tail := outputTail(result.Stderr); tail != "" {
			detail = fmt.Sprintf("%s: %s", detail, tail)
		}
		return result, services.Wrap(services.ErrExternalTool, h.inv.Stage, h.inv.Name, detail, waitErr)
	}
	return result, nil
}

func persistCapture(inv Invocation, result Result) error {
	if inv.LogDir == "" || inv.Name == "" {
		return nil
	}
	if err := os.MkdirAll(inv.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	stdoutPath := filepath.Join(inv.LogDir, inv.Name+".stdout")
	if err := os.WriteFile(stdoutPath, result.Stdout, 0o644); err != nil {
		return fmt.Errorf("write stdout capture: %w", err)
	}
	stderrPath := filepath.Join(inv.LogDir, inv.Name+".stderr")
	if err := os.WriteFile(stderrPath, result.Stderr, 0o644); err != nil {
		return fmt.Errorf("write stderr capture: %w", err)
	}
	return nil
}

func commandLine(inv Invocation) string {
	parts := append([]string{inv.Binary}, inv.Args...)
	return strings.Join(parts, " ")
}

// outputTail returns the last non-empty line of captured output, which for
// most tools carries the actual failure reason.
func outputTail(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

var _ Runner = (*Local)(nil)
