// Package stage executes one pipeline stage against one run or sample,
// persisting status transitions in the state store and classifying failures.
package stage

import (
	"context"
	"fmt"
	"log/slog"

	"strand/internal/logging"
	"strand/internal/services"
	"strand/internal/state"
)

// SubjectKind selects which state-store table a stage transition touches.
type SubjectKind int

const (
	SubjectRun SubjectKind = iota
	SubjectSample
)

// Options controls stage execution and state persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Store      *state.Store
	StageName  string
	Subject    SubjectKind
	Name       string
	Processing state.Status
	Done       state.Status
	Execute    func(context.Context) error
}

// Run executes a stage with the transition semantics every stage shares:
// move to the processing status, execute, then either record the done status
// or persist the failure with its message. The error (when any) is returned
// unwrapped so the orchestrator can apply the continue-on-error policy.
func Run(ctx context.Context, opts Options) error {
	if opts.Execute == nil {
		return fmt.Errorf("stage %s has no execute function", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("state store is required")
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(subjectField(opts.Subject), opts.Name),
	)

	if err := opts.setStatus(stageCtx, opts.Processing, ""); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := opts.Execute(stageCtx); err != nil {
		stageLogger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(subjectField(opts.Subject), opts.Name),
			logging.Error(err),
		)
		if persistErr := opts.setStatus(stageCtx, state.StatusFailed, services.Message(err)); persistErr != nil {
			stageLogger.Error("failed to persist stage failure", logging.Error(persistErr))
		}
		return err
	}

	if err := opts.setStatus(stageCtx, opts.Done, ""); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(subjectField(opts.Subject), opts.Name),
		logging.String("next_status", string(opts.Done)),
	)
	return nil
}

func (o Options) setStatus(ctx context.Context, status state.Status, message string) error {
	switch o.Subject {
	case SubjectSample:
		return o.Store.SetSampleStatus(ctx, o.Name, status, message)
	default:
		return o.Store.SetRunStatus(ctx, o.Name, status, message)
	}
}

func subjectField(kind SubjectKind) string {
	if kind == SubjectSample {
		return logging.FieldSample
	}
	return logging.FieldRun
}
