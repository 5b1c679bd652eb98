package services

import "context"

type contextKey string

const (
	runKey    contextKey = "run"
	sampleKey contextKey = "sample"
	stageKey  contextKey = "stage"
)

// WithRun annotates context with the sequencing-run name.
func WithRun(ctx context.Context, run string) context.Context {
	if run == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, run)
}

// RunFromContext extracts the sequencing-run name if present.
func RunFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runKey).(string)
	return v, ok && v != ""
}

// WithSample annotates context with the sample name.
func WithSample(ctx context.Context, sample string) context.Context {
	if sample == "" {
		return ctx
	}
	return context.WithValue(ctx, sampleKey, sample)
}

// SampleFromContext extracts the sample name if present.
func SampleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sampleKey).(string)
	return v, ok && v != ""
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the pipeline stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stageKey).(string)
	return v, ok && v != ""
}
