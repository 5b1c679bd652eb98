package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"strand/internal/acquire"
	"strand/internal/batch"
	"strand/internal/config"
	"strand/internal/deps"
	"strand/internal/logging"
	"strand/internal/pipeline"
	"strand/internal/project"
	"strand/internal/services/cellranger"
	"strand/internal/services/execx"
	"strand/internal/state"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var projectDir string
	var batchFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline for a project",
		Long: "Acquires and demultiplexes every run in the batch document, processes " +
			"every sample with cellranger multi, and aggregates any configured groups.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, projectDir, batchFile, cmdCtx.debug())
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", "", "Project directory for run data and outputs (required)")
	cmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Batch document in YAML format (required)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, projectDir, batchFile string, debug bool) error {
	b, err := batch.Load(batchFile)
	if err != nil {
		return err
	}

	layout, err := project.Plan(projectDir)
	if err != nil {
		return err
	}
	if err := layout.CopyConfig(b.Path); err != nil {
		return err
	}

	unlock, err := layout.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logger, err := logging.NewPipelineLogger(layout.Logs, level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	binary := cfg.Cellranger.Binary
	if b.Cellranger != "" {
		binary = b.Cellranger
	}
	uiPort := cfg.Cellranger.UIPort
	if b.UIPort != 0 {
		uiPort = b.UIPort
	}

	depCfg := *cfg
	depCfg.Cellranger.Binary = binary
	statuses := deps.CheckBinaries(deps.Requirements(&depCfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}

	runner := execx.NewLocal(execx.WithDebug(debug), execx.WithLogger(logger))
	client, err := cellranger.New(binary,
		cellranger.WithRunner(runner),
		cellranger.WithLogger(logger),
		cellranger.WithUIPort(uiPort),
		cellranger.WithFastqSubdir(cfg.Cellranger.FastqSubdir),
		cellranger.WithMarkerTiming(
			time.Duration(cfg.Cellranger.UIMarkerDelaySeconds)*time.Second,
			time.Duration(cfg.Cellranger.UIMarkerTimeoutSeconds)*time.Second,
		),
	)
	if err != nil {
		return err
	}

	store, err := state.Open(layout.Logs)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := pipeline.New(pipeline.Deps{
		Config:   cfg,
		Batch:    b,
		Layout:   layout,
		Store:    store,
		Client:   client,
		Acquirer: acquire.New(acquire.WithRunner(runner), acquire.WithLogger(logger)),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return p.Run(cmd.Context())
}
