package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strand/internal/state"
	"strand/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func requireContains(t *testing.T, output, fragment string) {
	t.Helper()
	if !strings.Contains(output, fragment) {
		t.Fatalf("expected %q in output:\n%s", fragment, output)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--config", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample settings")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected settings file at %s: %v", target, err)
	}

	out, err = runCLI(t, "config", "show", "--config", target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# "+target)
	requireContains(t, out, "binary = 'cellranger'")
	requireContains(t, out, "continue_on_error = false")
}

func TestConfigShowFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "built-in defaults")
	requireContains(t, out, "uiport = 72647")
}

func TestPlanRendersBatchSummary(t *testing.T) {
	dir := t.TempDir()
	csv := testsupport.WriteSimpleCSV(t, dir, "lib_s1_gex")
	document := fmt.Sprintf(`
runs:
  run1:
    path: %s
    is_compressed: false
    simple_csv: %s
samples:
  s1:
    gex: lib_s1_gex
gex_reference:
  default: /refs/gex
ops:
  aggr:
    cohort: [s1]
`, dir, csv)
	batchPath := testsupport.WriteFile(t, dir, "batch.yaml", document)

	out, err := runCLI(t, "plan", "--batch", batchPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "Batch: "+batchPath)
	requireContains(t, out, "run1")
	requireContains(t, out, "lib_s1_gex (Gene Expression)")
	requireContains(t, out, "/refs/gex")
	requireContains(t, out, "Aggregation Group")
	requireContains(t, out, "cohort")
}

func TestPlanRejectsMissingBatchFile(t *testing.T) {
	if _, err := runCLI(t, "plan", "--batch", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing batch document")
	}
}

func TestStatusRendersStateStore(t *testing.T) {
	projectDir := t.TempDir()
	store, err := state.Open(filepath.Join(projectDir, "logs"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	ctx := context.Background()
	pipelineID, err := store.BeginPipeline(ctx, "/tmp/batch.yaml")
	if err != nil {
		t.Fatalf("BeginPipeline returned error: %v", err)
	}
	if _, err := store.EnsureRun(ctx, pipelineID, "run1"); err != nil {
		t.Fatalf("EnsureRun returned error: %v", err)
	}
	if err := store.SetRunStatus(ctx, "run1", state.StatusDemultiplexed, ""); err != nil {
		t.Fatalf("SetRunStatus returned error: %v", err)
	}
	if _, err := store.EnsureSample(ctx, pipelineID, "s1"); err != nil {
		t.Fatalf("EnsureSample returned error: %v", err)
	}
	if err := store.SetSampleStatus(ctx, "s1", state.StatusFailed, "cellranger exited abnormally"); err != nil {
		t.Fatalf("SetSampleStatus returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	out, err := runCLI(t, "status", "--project", projectDir)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "run1")
	requireContains(t, out, "Demultiplexed")
	requireContains(t, out, "s1")
	requireContains(t, out, "Failed")
	requireContains(t, out, "cellranger exited abnormally")
}

func TestStatusLabelTitleCases(t *testing.T) {
	if got := statusLabel(state.StatusDemultiplexing); got != "Demultiplexing" {
		t.Fatalf("unexpected label: %q", got)
	}
	if got := statusLabel(state.StatusPending); got != "Pending" {
		t.Fatalf("unexpected label: %q", got)
	}
}
