package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"strand/internal/batch"
)

func newPlanCommand(cmdCtx *commandContext) *cobra.Command {
	var batchFile string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Parse a batch document and show what would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := batch.Load(batchFile)
			if err != nil {
				return err
			}
			printPlan(cmd, b)
			return nil
		},
	}

	cmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Batch document in YAML format (required)")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func printPlan(cmd *cobra.Command, b *batch.Batch) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch: %s\n\n", b.Path)

	runRows := make([][]string, 0, len(b.Runs))
	for _, run := range b.Runs {
		origin := run.Path
		if run.URL != "" {
			origin = run.URL
		}
		input := run.Samplesheet
		if input == "" {
			input = run.SimpleCSV
		}
		runRows = append(runRows, []string{
			run.Name,
			origin,
			strconv.FormatBool(run.IsCompressed),
			input,
			strconv.Itoa(len(run.Libraries)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Origin", "Compressed", "Demux Input", "Libraries"},
		runRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))

	sampleRows := make([][]string, 0, len(b.Samples))
	for _, sample := range b.Samples {
		libs := make([]string, 0, len(sample.Libraries))
		for _, library := range sample.Libraries {
			libs = append(libs, fmt.Sprintf("%s (%s)", library.Name, library.Type))
		}
		sampleRows = append(sampleRows, []string{
			sample.Name,
			strings.Join(libs, ", "),
			sample.GexReference,
			sample.VDJReference,
			sample.FeatureReference,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Sample", "Libraries", "GEX Reference", "VDJ Reference", "Feature Reference"},
		sampleRows,
		nil,
	))

	if len(b.Ops.Aggr) > 0 {
		groups := make([]string, 0, len(b.Ops.Aggr))
		for group := range b.Ops.Aggr {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		aggrRows := make([][]string, 0, len(groups))
		for _, group := range groups {
			aggrRows = append(aggrRows, []string{group, strings.Join(b.Ops.Aggr[group], ", ")})
		}
		fmt.Fprintln(out, renderTable([]string{"Aggregation Group", "Samples"}, aggrRows, nil))
	}

	for op, members := range map[string][]string{
		"vdj":               b.Ops.VDJ,
		"count":             b.Ops.Count,
		"feature-barcoding": b.Ops.FeatureBarcoding,
	} {
		if len(members) > 0 {
			fmt.Fprintf(out, "Extra operation %s: %s\n", op, strings.Join(members, ", "))
		}
	}
}
