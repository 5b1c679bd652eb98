package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"strand/internal/state"
)

var statusCaser = cases.Title(language.English)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var projectDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show run and sample progress for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.Open(filepath.Join(projectDir, "logs"))
			if err != nil {
				return err
			}
			defer store.Close()
			return printStatus(cmd, store)
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", "", "Project directory (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func printStatus(cmd *cobra.Command, store *state.Store) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	runRows := make([][]string, 0, len(runs))
	for _, run := range runs {
		runRows = append(runRows, []string{
			run.Name,
			statusLabel(run.Status),
			run.FastqPath,
			run.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Run", "Status", "Fastq Path", "Error"}, runRows, nil))

	samples, err := store.ListSamples(ctx)
	if err != nil {
		return err
	}
	sampleRows := make([][]string, 0, len(samples))
	for _, sample := range samples {
		sampleRows = append(sampleRows, []string{
			sample.Name,
			statusLabel(sample.Status),
			sample.CountPath,
			sample.AggrPath,
			sample.ErrorMessage,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Sample", "Status", "Output", "Aggregation", "Error"}, sampleRows, nil))
	return nil
}

func statusLabel(status state.Status) string {
	return statusCaser.String(strings.ReplaceAll(string(status), "_", " "))
}
