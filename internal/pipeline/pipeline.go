package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"strand/internal/acquire"
	"strand/internal/batch"
	"strand/internal/binder"
	"strand/internal/config"
	"strand/internal/logging"
	"strand/internal/project"
	"strand/internal/services"
	"strand/internal/services/cellranger"
	"strand/internal/stage"
	"strand/internal/state"
)

// Pipeline drives one batch through acquisition, demultiplexing, binding,
// per-sample processing, and aggregation.
type Pipeline struct {
	cfg      *config.Config
	batch    *batch.Batch
	layout   *project.Layout
	store    *state.Store
	client   *cellranger.Client
	acquirer *acquire.Acquirer
	logger   *slog.Logger
}

// Deps collects the collaborators the pipeline needs.
type Deps struct {
	Config   *config.Config
	Batch    *batch.Batch
	Layout   *project.Layout
	Store    *state.Store
	Client   *cellranger.Client
	Acquirer *acquire.Acquirer
	Logger   *slog.Logger
}

// New constructs a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Config == nil || deps.Batch == nil || deps.Layout == nil || deps.Store == nil {
		return nil, fmt.Errorf("pipeline requires config, batch, layout, and store")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("pipeline requires a cellranger client")
	}
	if deps.Acquirer == nil {
		deps.Acquirer = acquire.New()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:      deps.Config,
		batch:    deps.Batch,
		layout:   deps.Layout,
		store:    deps.Store,
		client:   deps.Client,
		acquirer: deps.Acquirer,
		logger:   deps.Logger,
	}, nil
}

// Run executes the whole batch. Runs complete before any sample processing
// starts; aggregation goes last.
func (p *Pipeline) Run(ctx context.Context) error {
	pipelineID, err := p.store.BeginPipeline(ctx, p.batch.Path)
	if err != nil {
		return err
	}
	p.logger.Info("pipeline started",
		logging.String("pipeline_id", pipelineID),
		logging.String("batch", p.batch.Path),
		logging.Int("runs", len(p.batch.Runs)),
		logging.Int("samples", len(p.batch.Samples)),
	)

	if err := p.processRuns(ctx, pipelineID); err != nil {
		return err
	}
	if err := p.processSamples(ctx, pipelineID); err != nil {
		return err
	}
	if err := p.aggregate(ctx); err != nil {
		return err
	}

	p.logger.Info("pipeline completed", logging.String("pipeline_id", pipelineID))
	return nil
}

func (p *Pipeline) processRuns(ctx context.Context, pipelineID string) error {
	for _, run := range p.batch.Runs {
		p.splash(run.Name)
		runCtx := services.WithRun(ctx, run.Name)

		rec, err := p.store.EnsureRun(runCtx, pipelineID, run.Name)
		if err != nil {
			return err
		}

		// Resume support: a run that already demultiplexed only needs its
		// fastq path rebound onto the in-memory entities.
		if rec.Demultiplexed() && rec.FastqPath != "" {
			p.logger.Info("run already demultiplexed, skipping",
				logging.String(logging.FieldRun, run.Name),
			)
			run.Path = rec.ResolvedPath
			run.FastqPath = rec.FastqPath
			binder.Bind(run, p.batch.Samples, p.logger)
			continue
		}

		if err := p.runStages(runCtx, run, rec); err != nil {
			if p.cfg.Pipeline.ContinueOnError && services.Recoverable(err) {
				p.logger.Warn("run failed, continuing with remaining runs",
					logging.String(logging.FieldRun, run.Name),
					logging.Error(err),
				)
				continue
			}
			return err
		}
		binder.Bind(run, p.batch.Samples, p.logger)
	}
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, run *batch.Run, rec state.RunRecord) error {
	// Acquisition is idempotent: a run already resolved to a directory is
	// never re-fetched.
	if rec.ResolvedPath != "" {
		run.Path = rec.ResolvedPath
		p.logger.Info("run data already acquired",
			logging.String(logging.FieldRun, run.Name),
			logging.String("path", run.Path),
		)
	} else {
		err := stage.Run(ctx, stage.Options{
			Logger:     p.logger,
			Store:      p.store,
			StageName:  "acquire",
			Subject:    stage.SubjectRun,
			Name:       run.Name,
			Processing: state.StatusAcquiring,
			Done:       state.StatusAcquired,
			Execute: func(stageCtx context.Context) error {
				logDir, err := p.layout.StageLogDir("acquire")
				if err != nil {
					return err
				}
				resolved, err := p.acquirer.Acquire(stageCtx, run, p.layout.RunData, logDir)
				if err != nil {
					return err
				}
				run.Path = resolved
				return p.store.SetRunResolvedPath(stageCtx, run.Name, resolved)
			},
		})
		if err != nil {
			return err
		}
	}

	return stage.Run(ctx, stage.Options{
		Logger:     p.logger,
		Store:      p.store,
		StageName:  "mkfastq",
		Subject:    stage.SubjectRun,
		Name:       run.Name,
		Processing: state.StatusDemultiplexing,
		Done:       state.StatusDemultiplexed,
		Execute: func(stageCtx context.Context) error {
			logDir, err := p.layout.StageLogDir("mkfastq")
			if err != nil {
				return err
			}
			fastqPath, err := p.client.Mkfastq(stageCtx, cellranger.MkfastqRequest{
				RunName:     run.Name,
				RunPath:     run.Path,
				Samplesheet: run.Samplesheet,
				SimpleCSV:   run.SimpleCSV,
				DemuxDir:    p.layout.Demux,
				LogDir:      logDir,
			})
			if err != nil {
				return err
			}
			run.FastqPath = fastqPath
			return p.store.SetRunFastqPath(stageCtx, run.Name, fastqPath)
		},
	})
}

func (p *Pipeline) processSamples(ctx context.Context, pipelineID string) error {
	for _, sample := range p.batch.Samples {
		p.splash(sample.Name)
		sampleCtx := services.WithSample(ctx, sample.Name)

		if _, err := p.store.EnsureSample(sampleCtx, pipelineID, sample.Name); err != nil {
			return err
		}
		if !sample.FastqReady() {
			err := services.Wrap(services.ErrValidation, "multi", sample.Name,
				"no demultiplexed reads bound to every library", nil)
			if persistErr := p.store.SetSampleStatus(sampleCtx, sample.Name, state.StatusFailed, services.Message(err)); persistErr != nil {
				return persistErr
			}
			if p.cfg.Pipeline.ContinueOnError {
				p.logger.Warn("sample skipped", logging.String(logging.FieldSample, sample.Name), logging.Error(err))
				continue
			}
			return err
		}

		if err := p.sampleOperations(sampleCtx, sample); err != nil {
			if p.cfg.Pipeline.ContinueOnError && services.Recoverable(err) {
				p.logger.Warn("sample failed, continuing with remaining samples",
					logging.String(logging.FieldSample, sample.Name),
					logging.Error(err),
				)
				continue
			}
			return err
		}
	}
	return nil
}

// sampleOperations runs multi for every sample, then any extra operations
// the batch document requested for it.
func (p *Pipeline) sampleOperations(ctx context.Context, sample *batch.Sample) error {
	ops := []string{"multi"}
	ops = append(ops, p.extraOps(sample.Name)...)

	for _, name := range ops {
		op, err := operationFor(name)
		if err != nil {
			return err
		}
		if err := p.invokeSampleOp(ctx, op, sample); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) invokeSampleOp(ctx context.Context, op Operation, sample *batch.Sample) error {
	return stage.Run(ctx, stage.Options{
		Logger:     p.logger,
		Store:      p.store,
		StageName:  op.Name(),
		Subject:    stage.SubjectSample,
		Name:       sample.Name,
		Processing: state.StatusCounting,
		Done:       state.StatusCounted,
		Execute: func(stageCtx context.Context) error {
			logDir, err := p.layout.StageLogDir(op.Name())
			if err != nil {
				return err
			}
			outputPath, err := op.Invoke(stageCtx, opEnv{
				client:    p.client,
				outputDir: p.layout.Counts,
				logDir:    logDir,
				normalize: p.cfg.Cellranger.Normalization,
			}, Target{Sample: sample})
			if err != nil {
				return err
			}
			// The multi output is what aggregation consumes; extra
			// operations keep their own subdirectories but do not replace it.
			if op.Name() == "multi" {
				sample.CountPath = outputPath
				return p.store.SetSampleCountPath(stageCtx, sample.Name, outputPath)
			}
			return nil
		},
	})
}

func (p *Pipeline) extraOps(sampleName string) []string {
	var ops []string
	for name, members := range map[string][]string{
		"vdj":               p.batch.Ops.VDJ,
		"count":             p.batch.Ops.Count,
		"feature-barcoding": p.batch.Ops.FeatureBarcoding,
	} {
		for _, member := range members {
			if member == sampleName {
				ops = append(ops, name)
			}
		}
	}
	sort.Strings(ops)
	return ops
}

func (p *Pipeline) aggregate(ctx context.Context) error {
	if len(p.batch.Ops.Aggr) == 0 {
		return nil
	}

	groups := make([]string, 0, len(p.batch.Ops.Aggr))
	for group := range p.batch.Ops.Aggr {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	op, err := operationFor("aggregate")
	if err != nil {
		return err
	}

	for _, group := range groups {
		p.splash(group)
		members, err := p.groupMembers(ctx, group)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			p.logger.Warn("aggregation group has no processable samples",
				logging.String(logging.FieldGroup, group),
			)
			continue
		}

		if err := p.aggregateGroup(ctx, op, group, members); err != nil {
			if p.cfg.Pipeline.ContinueOnError && services.Recoverable(err) {
				p.logger.Warn("aggregation failed, continuing with remaining groups",
					logging.String(logging.FieldGroup, group),
					logging.Error(err),
				)
				continue
			}
			return err
		}
	}
	return nil
}

// groupMembers loads the group's samples, excluding any that failed earlier;
// an exclusion is logged so the cohort composition is auditable.
func (p *Pipeline) groupMembers(ctx context.Context, group string) ([]*batch.Sample, error) {
	var members []*batch.Sample
	for _, name := range p.batch.Ops.Aggr[group] {
		sample := p.batch.Sample(name)
		rec, err := p.store.GetSample(ctx, name)
		if err != nil {
			return nil, err
		}
		if rec.Status == state.StatusFailed {
			p.logger.Warn("excluding failed sample from aggregation",
				logging.String(logging.FieldGroup, group),
				logging.String(logging.FieldSample, name),
			)
			continue
		}
		if sample.CountPath == "" {
			sample.CountPath = rec.CountPath
		}
		members = append(members, sample)
	}
	return members, nil
}

func (p *Pipeline) aggregateGroup(ctx context.Context, op Operation, group string, members []*batch.Sample) error {
	for _, member := range members {
		if err := p.store.SetSampleStatus(ctx, member.Name, state.StatusAggregating, ""); err != nil {
			return err
		}
	}

	logDir, err := p.layout.StageLogDir("aggr")
	if err != nil {
		return err
	}
	p.logger.Info("aggregating group",
		logging.String(logging.FieldGroup, group),
		logging.Int("members", len(members)),
	)
	outputPath, err := op.Invoke(ctx, opEnv{
		client:    p.client,
		outputDir: p.layout.Aggr,
		logDir:    logDir,
		normalize: p.cfg.Cellranger.Normalization,
	}, Target{Group: group, Members: members})
	if err != nil {
		for _, member := range members {
			if persistErr := p.store.SetSampleStatus(ctx, member.Name, state.StatusFailed, services.Message(err)); persistErr != nil {
				p.logger.Error("failed to persist aggregation failure", logging.Error(persistErr))
			}
		}
		return err
	}

	for _, member := range members {
		member.AggrPath = outputPath
		if err := p.store.SetSampleAggrPath(ctx, member.Name, outputPath); err != nil {
			return err
		}
		if err := p.store.SetSampleStatus(ctx, member.Name, state.StatusCompleted, ""); err != nil {
			return err
		}
	}
	return nil
}

// splash prints the banner the operator scans for when tailing logs.
func (p *Pipeline) splash(name string) {
	rule := strings.Repeat("-", len(name)+4)
	p.logger.Info(rule)
	p.logger.Info("  " + name)
	p.logger.Info(rule)
}
